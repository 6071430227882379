package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/book-market-backend/internal/model"
	"github.com/shinyyama/book-market-backend/internal/service"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type TransactionHandler struct {
	svc    service.TransactionService
	logger *zap.Logger
}

func NewTransactionHandler(svc service.TransactionService, logger *zap.Logger) *TransactionHandler {
	return &TransactionHandler{svc: svc, logger: logger}
}

type TransactionResponse struct {
	ID                   uint64          `json:"id"`
	NegotiationRequestID uint64          `json:"negotiationRequestId"`
	ListingID            uint64          `json:"listingId"`
	ListingKind          string          `json:"listingKind"`
	BuyerUID             string          `json:"buyerUid"`
	SellerUID            string          `json:"sellerUid"`
	BaseAmount           decimal.Decimal `json:"baseAmount"`
	DiscountAmount       decimal.Decimal `json:"discountAmount"`
	FinalAmount          decimal.Decimal `json:"finalAmount"`
	PointsSpent          int64           `json:"pointsSpent"`
	State                string          `json:"state"`
	ConcludedAt          *string         `json:"concludedAt,omitempty"`
	CanceledAt           *string         `json:"canceledAt,omitempty"`
	CreatedAt            string          `json:"createdAt"`
}

type ReturnResponse struct {
	ID                 uint64  `json:"id"`
	TransactionID      uint64  `json:"transactionId"`
	InitiatingBuyerUID string  `json:"initiatingBuyerUid"`
	RegisteredAt       string  `json:"registeredAt"`
	SellerConfirmedAt  *string `json:"sellerConfirmedAt,omitempty"`
	Confirmed          bool    `json:"confirmed"`
}

type TransactionWithReturnResponse struct {
	Transaction TransactionResponse `json:"transaction"`
	Return      ReturnResponse      `json:"return"`
}

func toTransactionResponse(t *model.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:                   t.ID,
		NegotiationRequestID: t.NegotiationRequestID,
		ListingID:            t.ListingID,
		ListingKind:          string(t.ListingKind),
		BuyerUID:             t.BuyerUID,
		SellerUID:            t.SellerUID,
		BaseAmount:           t.BaseAmount,
		DiscountAmount:       t.DiscountAmount,
		FinalAmount:          t.FinalAmount,
		PointsSpent:          t.PointsSpent,
		State:                string(t.State),
		ConcludedAt:          formatTime(t.ConcludedAt),
		CanceledAt:           formatTime(t.CanceledAt),
		CreatedAt:            t.CreatedAt.Format(time.RFC3339),
	}
}

func toReturnResponse(r *model.Return) ReturnResponse {
	return ReturnResponse{
		ID:                 r.ID,
		TransactionID:      r.TransactionID,
		InitiatingBuyerUID: r.InitiatingBuyerUID,
		RegisteredAt:       r.RegisteredAt.Format(time.RFC3339),
		SellerConfirmedAt:  formatTime(r.SellerConfirmedAt),
		Confirmed:          r.Confirmed,
	}
}

func (h *TransactionHandler) Get(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return missingUID(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid transaction id"))
	}
	t, err := h.svc.Get(c.Request().Context(), id, uid)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, toTransactionResponse(t))
}

func (h *TransactionHandler) ConfirmReceipt(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return missingUID(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid transaction id"))
	}
	t, err := h.svc.ConfirmReceipt(c.Request().Context(), id, uid)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, toTransactionResponse(t))
}

func (h *TransactionHandler) Cancel(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return missingUID(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid transaction id"))
	}
	t, err := h.svc.Cancel(c.Request().Context(), id, uid)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, toTransactionResponse(t))
}

func (h *TransactionHandler) RegisterReturn(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return missingUID(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid transaction id"))
	}
	t, r, err := h.svc.RegisterReturn(c.Request().Context(), id, uid)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, TransactionWithReturnResponse{
		Transaction: toTransactionResponse(t),
		Return:      toReturnResponse(r),
	})
}

func (h *TransactionHandler) ConfirmReturn(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return missingUID(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid transaction id"))
	}
	t, r, err := h.svc.ConfirmReturn(c.Request().Context(), id, uid)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, TransactionWithReturnResponse{
		Transaction: toTransactionResponse(t),
		Return:      toReturnResponse(r),
	})
}
