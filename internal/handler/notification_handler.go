package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/book-market-backend/internal/model"
	"github.com/shinyyama/book-market-backend/internal/repository"
	"github.com/shinyyama/book-market-backend/internal/service"
	"go.uber.org/zap"
)

type NotificationHandler struct {
	svc    service.NotificationService
	logger *zap.Logger
}

func NewNotificationHandler(svc service.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{svc: svc, logger: logger}
}

type NotificationResponse struct {
	ID        uint64 `json:"id"`
	Kind      string `json:"kind"`
	Body      string `json:"body"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"createdAt"`
}

func toNotificationResponse(n model.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Kind:      string(n.Kind),
		Body:      n.Body,
		Read:      n.ReadAt != nil,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
	}
}

func (h *NotificationHandler) List(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return missingUID(c)
	}
	f := repository.NotificationFilter{
		UnreadOnly: c.QueryParam("unread_only") != "false",
		Kind:       model.NotificationKind(strings.ToUpper(c.QueryParam("kind"))),
	}
	if lStr := c.QueryParam("limit"); lStr != "" {
		if lParsed, err := strconv.Atoi(lStr); err == nil && lParsed > 0 {
			f.Limit = lParsed
		}
	}
	if bStr := c.QueryParam("before"); bStr != "" {
		before, err := strconv.ParseUint(bStr, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid before id"))
		}
		f.BeforeID = before
	}
	list, unread, err := h.svc.List(c.Request().Context(), uid, f)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	resp := make([]NotificationResponse, 0, len(list))
	for _, n := range list {
		resp = append(resp, toNotificationResponse(n))
	}
	var total int64
	byKind := make(map[string]int64, len(unread))
	for k, n := range unread {
		byKind[string(k)] = n
		total += n
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"notifications": resp,
		"unreadCount":   total,
		"unreadByKind":  byKind,
	})
}

// MarkRead marks the caller's unread notifications as read, optionally only one kind.
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return missingUID(c)
	}
	kind := model.NotificationKind(strings.ToUpper(c.QueryParam("kind")))
	n, err := h.svc.MarkRead(c.Request().Context(), uid, kind)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, map[string]int64{"marked": n})
}
