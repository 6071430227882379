package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/book-market-backend/internal/model"
	"github.com/shinyyama/book-market-backend/internal/service"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type NegotiationHandler struct {
	svc    service.NegotiationService
	txSvc  service.TransactionService
	logger *zap.Logger
}

func NewNegotiationHandler(svc service.NegotiationService, txSvc service.TransactionService, logger *zap.Logger) *NegotiationHandler {
	return &NegotiationHandler{svc: svc, txSvc: txSvc, logger: logger}
}

type NegotiationResponse struct {
	ID             uint64          `json:"id"`
	ListingID      uint64          `json:"listingId"`
	ListingKind    string          `json:"listingKind"`
	ConversationID uint64          `json:"conversationId"`
	ProposedAmount decimal.Decimal `json:"proposedAmount"`
	RentalDays     *int            `json:"rentalDays,omitempty"`
	BuyerUID       string          `json:"buyerUid"`
	SellerUID      string          `json:"sellerUid"`
	SenderUID      string          `json:"senderUid"`
	RecipientUID   string          `json:"recipientUid"`
	State          string          `json:"state"`
	CreatedAt      string          `json:"createdAt"`
}

func toNegotiationResponse(r *model.NegotiationRequest) NegotiationResponse {
	return NegotiationResponse{
		ID:             r.ID,
		ListingID:      r.ListingID,
		ListingKind:    string(r.ListingKind),
		ConversationID: r.ConversationID,
		ProposedAmount: r.ProposedAmount,
		RentalDays:     r.RentalDays,
		BuyerUID:       r.BuyerUID,
		SellerUID:      r.SellerUID,
		SenderUID:      r.SenderUID,
		RecipientUID:   r.RecipientUID,
		State:          string(r.State),
		CreatedAt:      r.CreatedAt.Format(time.RFC3339),
	}
}

type createNegotiationRequest struct {
	ProposedAmount *decimal.Decimal `json:"proposedAmount"`
	ConversationID *uint64          `json:"conversationId"`
	RentalDays     *int             `json:"rentalDays"`
}

func (h *NegotiationHandler) Create(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return missingUID(c)
	}
	listingID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid listing id"))
	}
	var body createNegotiationRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid body"))
	}
	if body.ProposedAmount == nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "proposedAmount is required"))
	}
	req, err := h.svc.CreateRequest(c.Request().Context(), service.CreateNegotiationInput{
		ListingID:      listingID,
		ActorUID:       uid,
		ProposedAmount: *body.ProposedAmount,
		ConversationID: body.ConversationID,
		RentalDays:     body.RentalDays,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, toNegotiationResponse(req))
}

func (h *NegotiationHandler) Get(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return missingUID(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid negotiation id"))
	}
	req, err := h.svc.Get(c.Request().Context(), id, uid)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, toNegotiationResponse(req))
}

func (h *NegotiationHandler) Accept(c echo.Context) error {
	return h.answer(c, h.svc.Accept)
}

func (h *NegotiationHandler) Reject(c echo.Context) error {
	return h.answer(c, h.svc.Reject)
}

type answerFunc func(ctx context.Context, requestID uint64, actorUID string) (*model.NegotiationRequest, error)

func (h *NegotiationHandler) answer(c echo.Context, fn answerFunc) error {
	uid := currentUID(c)
	if uid == "" {
		return missingUID(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid negotiation id"))
	}
	req, err := fn(c.Request().Context(), id, uid)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, toNegotiationResponse(req))
}

// CreateTransaction opens the transaction for an accepted negotiation.
func (h *NegotiationHandler) CreateTransaction(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return missingUID(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid negotiation id"))
	}
	var body struct {
		PointsSpent int64 `json:"pointsSpent"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid body"))
	}
	t, err := h.txSvc.Create(c.Request().Context(), id, uid, body.PointsSpent)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, toTransactionResponse(t))
}
