package handler

import (
	"context"
	"net/http"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"github.com/shinyyama/book-market-backend/internal/model"
	"github.com/shinyyama/book-market-backend/internal/service"
	"go.uber.org/zap"
)

// ProfileLookup is satisfied by *auth.Client.
type ProfileLookup interface {
	GetUser(ctx context.Context, uid string) (*auth.UserRecord, error)
}

type UserHandler struct {
	customers service.CustomerService
	profiles  ProfileLookup
	logger    *zap.Logger
}

// NewUserHandler accepts a nil profiles lookup; display names then come from the request body only.
func NewUserHandler(customers service.CustomerService, profiles ProfileLookup, logger *zap.Logger) *UserHandler {
	return &UserHandler{customers: customers, profiles: profiles, logger: logger}
}

type CustomerResponse struct {
	UID           string `json:"uid"`
	DisplayName   string `json:"displayName"`
	PointsBalance int64  `json:"pointsBalance"`
	CreatedAt     string `json:"createdAt"`
}

type PublicUserResponse struct {
	UID         string  `json:"uid"`
	DisplayName string  `json:"displayName"`
	PhotoURL    *string `json:"photoURL"`
}

func toCustomerResponse(c *model.Customer) CustomerResponse {
	return CustomerResponse{
		UID:           c.UID,
		DisplayName:   c.DisplayName,
		PointsBalance: c.PointsBalance,
		CreatedAt:     c.CreatedAt.Format(time.RFC3339),
	}
}

// Register makes sure the signed-in user has a customer profile.
func (h *UserHandler) Register(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return missingUID(c)
	}
	var body struct {
		DisplayName string `json:"displayName"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid body"))
	}
	name := body.DisplayName
	if name == "" && h.profiles != nil {
		if user, err := h.profiles.GetUser(c.Request().Context(), uid); err == nil {
			name = user.DisplayName
		}
	}
	cust, created, err := h.customers.Register(c.Request().Context(), uid, name)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, toCustomerResponse(cust))
}

func (h *UserHandler) Me(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return missingUID(c)
	}
	cust, err := h.customers.Get(c.Request().Context(), uid)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, toCustomerResponse(cust))
}

func (h *UserHandler) GetPublic(c echo.Context) error {
	uid := c.Param("uid")
	if uid == "" {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid uid"))
	}
	cust, err := h.customers.Get(c.Request().Context(), uid)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	resp := PublicUserResponse{UID: cust.UID, DisplayName: cust.DisplayName}
	if h.profiles != nil {
		if user, err := h.profiles.GetUser(c.Request().Context(), uid); err == nil {
			resp.PhotoURL = strPtrOrNil(user.PhotoURL)
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
