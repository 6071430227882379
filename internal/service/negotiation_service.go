package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shinyyama/book-market-backend/internal/model"
	"github.com/shinyyama/book-market-backend/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type NegotiationService interface {
	CreateRequest(ctx context.Context, in CreateNegotiationInput) (*model.NegotiationRequest, error)
	Accept(ctx context.Context, requestID uint64, actorUID string) (*model.NegotiationRequest, error)
	Reject(ctx context.Context, requestID uint64, actorUID string) (*model.NegotiationRequest, error)
	Get(ctx context.Context, requestID uint64, actorUID string) (*model.NegotiationRequest, error)
}

type CreateNegotiationInput struct {
	ListingID      uint64
	ActorUID       string
	ProposedAmount decimal.Decimal
	ConversationID *uint64
	RentalDays     *int
}

type negotiationService struct {
	negRepo      repository.NegotiationRepository
	listingRepo  repository.ListingRepository
	customerRepo repository.CustomerRepository
	convRepo     repository.ConversationRepository
	favRepo      repository.FavoriteRepository
	txRepo       repository.TransactionRepository
	notify       NotificationService
	transactor   repository.Transactor
	logger       *zap.Logger
}

func NewNegotiationService(
	negRepo repository.NegotiationRepository,
	listingRepo repository.ListingRepository,
	customerRepo repository.CustomerRepository,
	convRepo repository.ConversationRepository,
	favRepo repository.FavoriteRepository,
	txRepo repository.TransactionRepository,
	notify NotificationService,
	transactor repository.Transactor,
	logger *zap.Logger,
) NegotiationService {
	return &negotiationService{
		negRepo:      negRepo,
		listingRepo:  listingRepo,
		customerRepo: customerRepo,
		convRepo:     convRepo,
		favRepo:      favRepo,
		txRepo:       txRepo,
		notify:       notify,
		transactor:   transactor,
		logger:       logger,
	}
}

func (s *negotiationService) CreateRequest(ctx context.Context, in CreateNegotiationInput) (*model.NegotiationRequest, error) {
	listing, err := s.listingRepo.FindByID(ctx, in.ListingID)
	if err != nil {
		return nil, notFoundOr(err, "listing not found")
	}
	ok, err := s.customerRepo.Exists(ctx, in.ActorUID)
	if err != nil {
		return nil, Unexpected(err)
	}
	if !ok {
		return nil, NotFound("customer not found")
	}
	if err := validateTerms(listing.Kind, in.ProposedAmount, in.RentalDays); err != nil {
		return nil, err
	}
	if listing.State == model.ListingStateSold {
		return nil, Business("listing is no longer available")
	}
	if in.ActorUID == listing.SellerUID && in.ConversationID == nil {
		return nil, Unauthorized("the seller cannot start a negotiation")
	}

	cv, err := s.resolveConversation(ctx, listing, in)
	if err != nil {
		return nil, err
	}
	if err := s.guardActiveDeal(ctx, cv); err != nil {
		return nil, err
	}

	recipient := cv.SellerUID
	if in.ActorUID == cv.SellerUID {
		recipient = cv.BuyerUID
	}
	s.supersedePending(ctx, listing.ID, in.ActorUID, recipient)

	req := &model.NegotiationRequest{
		ProposedAmount: in.ProposedAmount,
		ListingKind:    listing.Kind,
		ListingID:      listing.ID,
		ConversationID: cv.ID,
		BuyerUID:       cv.BuyerUID,
		SellerUID:      cv.SellerUID,
		SenderUID:      in.ActorUID,
		RecipientUID:   recipient,
		State:          model.NegotiationPending,
	}
	if listing.Kind == model.ListingKindRental {
		req.RentalDays = in.RentalDays
	}
	if err := s.negRepo.Create(ctx, req); err != nil {
		return nil, Unexpected(err)
	}

	s.notify.Notify(ctx, recipient, model.NotificationKindTransaction,
		fmt.Sprintf("New offer of %s for \"%s\"", req.ProposedAmount.StringFixed(2), listing.Title))
	return req, nil
}

func (s *negotiationService) Accept(ctx context.Context, requestID uint64, actorUID string) (*model.NegotiationRequest, error) {
	req, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := req.Accept(actorUID); err != nil {
		return nil, fromGuard(err)
	}
	err = s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.persistTransition(ctx, req); err != nil {
			return err
		}
		return setListingState(ctx, s.listingRepo, s.logger, req.ListingID, model.ListingStateUnavailable)
	})
	if err != nil {
		return nil, err
	}

	title := "the listing"
	if listing, err := s.listingRepo.FindByID(ctx, req.ListingID); err == nil {
		title = fmt.Sprintf("\"%s\"", listing.Title)
	}
	s.notify.Notify(ctx, req.SenderUID, model.NotificationKindTransaction,
		fmt.Sprintf("Your offer for %s was accepted", title))
	s.notifyFavorites(ctx, req, title)
	return req, nil
}

func (s *negotiationService) Reject(ctx context.Context, requestID uint64, actorUID string) (*model.NegotiationRequest, error) {
	req, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := req.Reject(actorUID); err != nil {
		return nil, fromGuard(err)
	}
	if err := s.persistTransition(ctx, req); err != nil {
		return nil, err
	}
	s.notify.Notify(ctx, req.SenderUID, model.NotificationKindTransaction, "Your offer was declined")
	return req, nil
}

func (s *negotiationService) Get(ctx context.Context, requestID uint64, actorUID string) (*model.NegotiationRequest, error) {
	req, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.HasParty(actorUID) {
		return nil, Unauthorized("you are not part of this negotiation")
	}
	return req, nil
}

func (s *negotiationService) load(ctx context.Context, id uint64) (*model.NegotiationRequest, error) {
	req, err := s.negRepo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "negotiation request not found")
	}
	return req, nil
}

// persistTransition writes req.State only if the stored row is still pending.
func (s *negotiationService) persistTransition(ctx context.Context, req *model.NegotiationRequest) error {
	n, err := s.negRepo.UpdateState(ctx, req.ID, model.NegotiationPending, req.State)
	if err != nil {
		return Unexpected(err)
	}
	if n == 0 {
		return Business("negotiation request was already processed")
	}
	return nil
}

func validateTerms(kind model.ListingKind, amount decimal.Decimal, rentalDays *int) error {
	if kind == model.ListingKindRental && (rentalDays == nil || *rentalDays <= 0) {
		return Validation("rental days must be a positive number")
	}
	if amount.IsNegative() {
		return Validation("proposed amount cannot be negative")
	}
	if !amount.Equal(amount.Round(model.AmountScale)) {
		return Validation(fmt.Sprintf("proposed amount can have at most %d decimal places", model.AmountScale))
	}
	if kind != model.ListingKindDonation {
		if !amount.IsPositive() || amount.GreaterThan(decimal.NewFromInt(model.MaxProposedAmount)) {
			return Validation(fmt.Sprintf("proposed amount must be greater than 0 and at most %d", model.MaxProposedAmount))
		}
	}
	return nil
}

func (s *negotiationService) resolveConversation(ctx context.Context, listing *model.Listing, in CreateNegotiationInput) (*model.Conversation, error) {
	if in.ConversationID != nil {
		cv, err := s.convRepo.FindByID(ctx, *in.ConversationID)
		if err != nil {
			return nil, notFoundOr(err, "conversation not found")
		}
		if !cv.HasParty(in.ActorUID) {
			return nil, Unauthorized("you are not part of this conversation")
		}
		if cv.ListingID != listing.ID {
			return nil, Validation("conversation belongs to another listing")
		}
		return cv, nil
	}

	cv, err := s.convRepo.FindBetween(ctx, listing.ID, in.ActorUID, listing.SellerUID)
	if err == nil {
		return cv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, Unexpected(err)
	}
	cv = &model.Conversation{
		ListingID: listing.ID,
		SellerUID: listing.SellerUID,
		BuyerUID:  in.ActorUID,
	}
	if err := s.convRepo.Create(ctx, cv); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, Unexpected(err)
		}
		// Lost a create race; the other request's row is the conversation.
		cv, err = s.convRepo.FindBetween(ctx, listing.ID, in.ActorUID, listing.SellerUID)
		if err != nil {
			return nil, Unexpected(err)
		}
	}
	return cv, nil
}

// guardActiveDeal refuses a new request while the latest one in the conversation
// is accepted and its deal is still open. A canceled or concluded deal frees the
// conversation; a sold listing is refused earlier.
func (s *negotiationService) guardActiveDeal(ctx context.Context, cv *model.Conversation) error {
	latest, err := s.negRepo.LatestByConversation(ctx, cv.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return Unexpected(err)
	}
	if latest.State != model.NegotiationAccepted {
		return nil
	}
	t, err := s.txRepo.FindByNegotiation(ctx, latest.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return Unexpected(err)
	}
	if t != nil && (t.State == model.TransactionCanceled || t.State == model.TransactionConcluded) {
		return nil
	}
	return Business("an active transaction already exists for this listing in this conversation")
}

// supersedePending cancels older pending requests between the two parties for the
// listing. Failures are logged and never block the new request.
func (s *negotiationService) supersedePending(ctx context.Context, listingID uint64, uidA, uidB string) {
	pending, err := s.negRepo.ListPendingBetween(ctx, listingID, uidA, uidB)
	if err != nil {
		s.logger.Warn("supersede lookup failed", withRID(ctx, zap.Uint64("listing_id", listingID), zap.Error(err))...)
		return
	}
	for i := range pending {
		p := &pending[i]
		if err := p.Cancel(); err != nil {
			continue
		}
		if _, err := s.negRepo.UpdateState(ctx, p.ID, model.NegotiationPending, model.NegotiationCanceled); err != nil {
			s.logger.Warn("supersede cancel failed", withRID(ctx, zap.Uint64("negotiation_id", p.ID), zap.Error(err))...)
		}
	}
}

func (s *negotiationService) notifyFavorites(ctx context.Context, req *model.NegotiationRequest, title string) {
	favs, err := s.favRepo.ListByListing(ctx, req.ListingID)
	if err != nil {
		s.logger.Warn("favorite lookup failed", withRID(ctx, zap.Uint64("listing_id", req.ListingID), zap.Error(err))...)
		return
	}
	msg := fmt.Sprintf("%s is no longer available", title)
	for _, f := range favs {
		if f.CustomerUID == req.BuyerUID || f.CustomerUID == req.SellerUID {
			continue
		}
		s.notify.Notify(ctx, f.CustomerUID, model.NotificationKindFavorite, msg)
	}
}
