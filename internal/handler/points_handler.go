package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/book-market-backend/internal/service"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type PointsHandler struct {
	svc    service.PointsService
	logger *zap.Logger
}

func NewPointsHandler(svc service.PointsService, logger *zap.Logger) *PointsHandler {
	return &PointsHandler{svc: svc, logger: logger}
}

type PointsHistoryResponse struct {
	ID            string           `json:"id"`
	Kind          string           `json:"kind"`
	Amount        int64            `json:"amount"`
	TransactionID *uint64          `json:"transactionId,omitempty"`
	OccurredAt    string           `json:"occurredAt"`
	ListingTitle  *string          `json:"listingTitle,omitempty"`
	ListingImage  *string          `json:"listingImage,omitempty"`
	ListingPrice  *decimal.Decimal `json:"listingPrice,omitempty"`
}

func (h *PointsHandler) Balance(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return missingUID(c)
	}
	balance, err := h.svc.Balance(c.Request().Context(), uid)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, map[string]int64{"balance": balance})
}

func (h *PointsHandler) History(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return missingUID(c)
	}
	rows, err := h.svc.History(c.Request().Context(), uid)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	resp := make([]PointsHistoryResponse, 0, len(rows))
	for _, r := range rows {
		resp = append(resp, PointsHistoryResponse{
			ID:            r.Entry.ID,
			Kind:          string(r.Entry.Kind),
			Amount:        r.Entry.Amount,
			TransactionID: r.Entry.TransactionID,
			OccurredAt:    r.Entry.OccurredAt.Format(time.RFC3339),
			ListingTitle:  r.ListingTitle,
			ListingImage:  r.ListingImage,
			ListingPrice:  r.ListingPrice,
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"entries": resp})
}
