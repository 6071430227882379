package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shinyyama/book-market-backend/internal/model"
	"github.com/shinyyama/book-market-backend/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type TransactionService interface {
	Create(ctx context.Context, negotiationID uint64, actorUID string, pointsSpent int64) (*model.Transaction, error)
	Get(ctx context.Context, transactionID uint64, actorUID string) (*model.Transaction, error)
	ConfirmReceipt(ctx context.Context, transactionID uint64, actorUID string) (*model.Transaction, error)
	Cancel(ctx context.Context, transactionID uint64, actorUID string) (*model.Transaction, error)
	RegisterReturn(ctx context.Context, transactionID uint64, actorUID string) (*model.Transaction, *model.Return, error)
	ConfirmReturn(ctx context.Context, transactionID uint64, actorUID string) (*model.Transaction, *model.Return, error)
}

type transactionService struct {
	txRepo       repository.TransactionRepository
	negRepo      repository.NegotiationRepository
	listingRepo  repository.ListingRepository
	customerRepo repository.CustomerRepository
	points       PointsService
	notify       NotificationService
	transactor   repository.Transactor
	logger       *zap.Logger
	now          func() time.Time
}

func NewTransactionService(
	txRepo repository.TransactionRepository,
	negRepo repository.NegotiationRepository,
	listingRepo repository.ListingRepository,
	customerRepo repository.CustomerRepository,
	points PointsService,
	notify NotificationService,
	transactor repository.Transactor,
	logger *zap.Logger,
) TransactionService {
	return &transactionService{
		txRepo:       txRepo,
		negRepo:      negRepo,
		listingRepo:  listingRepo,
		customerRepo: customerRepo,
		points:       points,
		notify:       notify,
		transactor:   transactor,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *transactionService) Create(ctx context.Context, negotiationID uint64, actorUID string, pointsSpent int64) (*model.Transaction, error) {
	if pointsSpent < 0 {
		return nil, Validation("points spent cannot be negative")
	}
	req, err := s.negRepo.FindByID(ctx, negotiationID)
	if err != nil {
		return nil, notFoundOr(err, "negotiation request not found")
	}
	if actorUID != req.BuyerUID {
		return nil, Business("only the buyer can create the transaction")
	}
	if req.State != model.NegotiationAccepted {
		return nil, Business("negotiation request has not been accepted")
	}
	existing, err := s.txRepo.FindByNegotiation(ctx, negotiationID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, Unexpected(err)
	}
	if existing != nil {
		return nil, Business("a transaction already exists for this negotiation request")
	}

	if pointsSpent > 0 {
		if req.ProposedAmount.IsZero() {
			return nil, Business("points cannot be redeemed on a free listing")
		}
		buyer, err := s.customerRepo.FindByUID(ctx, req.BuyerUID)
		if err != nil {
			return nil, notFoundOr(err, "customer not found")
		}
		if buyer.PointsBalance < pointsSpent {
			return nil, Business("insufficient points")
		}
	}
	final, discount, err := model.ApplyDiscount(req.ProposedAmount, pointsSpent)
	if err != nil {
		return nil, Business(err.Error())
	}

	t := &model.Transaction{
		NegotiationRequestID: req.ID,
		ListingID:            req.ListingID,
		ListingKind:          req.ListingKind,
		BuyerUID:             req.BuyerUID,
		SellerUID:            req.SellerUID,
		BaseAmount:           req.ProposedAmount,
		DiscountAmount:       discount,
		FinalAmount:          final,
		PointsSpent:          pointsSpent,
		State:                model.TransactionPending,
	}
	err = s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.txRepo.Create(ctx, t); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return Business("a transaction already exists for this negotiation request")
			}
			return Unexpected(err)
		}
		if pointsSpent > 0 {
			if err := s.points.Spend(ctx, t.BuyerUID, pointsSpent, &t.ID); err != nil {
				if KindOf(err) == KindValidation {
					return Business(Message(err))
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify.Notify(ctx, t.SellerUID, model.NotificationKindTransaction,
		fmt.Sprintf("The buyer started transaction #%d for %s", t.ID, t.FinalAmount.StringFixed(2)))
	return t, nil
}

func (s *transactionService) Get(ctx context.Context, transactionID uint64, actorUID string) (*model.Transaction, error) {
	t, err := s.load(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if !t.HasParty(actorUID) {
		return nil, Unauthorized("you are not part of this transaction")
	}
	return t, nil
}

func (s *transactionService) ConfirmReceipt(ctx context.Context, transactionID uint64, actorUID string) (*model.Transaction, error) {
	t, err := s.load(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	from := t.State
	if err := t.ConfirmReceiptByBuyer(actorUID, s.now()); err != nil {
		return nil, fromGuard(err)
	}
	err = s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.persistTransition(ctx, t, from); err != nil {
			return err
		}
		if err := setListingState(ctx, s.listingRepo, s.logger, t.ListingID, model.ListingStateSold); err != nil {
			return err
		}
		return s.grantParties(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	s.notifyParties(ctx, t, fmt.Sprintf("Transaction #%d is complete", t.ID))
	return t, nil
}

func (s *transactionService) Cancel(ctx context.Context, transactionID uint64, actorUID string) (*model.Transaction, error) {
	t, err := s.load(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	from := t.State
	if err := t.Cancel(actorUID, s.now()); err != nil {
		return nil, fromGuard(err)
	}
	err = s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.persistTransition(ctx, t, from); err != nil {
			return err
		}
		if t.PointsSpent > 0 {
			if err := s.points.Grant(ctx, t.BuyerUID, t.PointsSpent, &t.ID); err != nil {
				return err
			}
		}
		return setListingState(ctx, s.listingRepo, s.logger, t.ListingID, model.ListingStateActive)
	})
	if err != nil {
		return nil, err
	}
	s.notifyParties(ctx, t, fmt.Sprintf("Transaction #%d was canceled", t.ID))
	return t, nil
}

func (s *transactionService) RegisterReturn(ctx context.Context, transactionID uint64, actorUID string) (*model.Transaction, *model.Return, error) {
	t, err := s.load(ctx, transactionID)
	if err != nil {
		return nil, nil, err
	}
	from := t.State
	if err := t.RegisterReturn(actorUID); err != nil {
		return nil, nil, fromGuard(err)
	}
	ret := &model.Return{
		TransactionID:      t.ID,
		InitiatingBuyerUID: actorUID,
		RegisteredAt:       s.now(),
	}
	err = s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.persistTransition(ctx, t, from); err != nil {
			return err
		}
		if err := s.txRepo.CreateReturn(ctx, ret); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return Business("a return is already registered for this transaction")
			}
			return Unexpected(err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	s.notify.Notify(ctx, t.SellerUID, model.NotificationKindTransaction,
		fmt.Sprintf("The buyer returned the book of transaction #%d; please confirm the return", t.ID))
	return t, ret, nil
}

func (s *transactionService) ConfirmReturn(ctx context.Context, transactionID uint64, actorUID string) (*model.Transaction, *model.Return, error) {
	t, err := s.load(ctx, transactionID)
	if err != nil {
		return nil, nil, err
	}
	from := t.State
	now := s.now()
	if err := t.ConfirmReturnBySeller(actorUID, now); err != nil {
		return nil, nil, fromGuard(err)
	}
	var ret *model.Return
	err = s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.persistTransition(ctx, t, from); err != nil {
			return err
		}
		r, err := s.txRepo.FindReturnByTransaction(ctx, t.ID)
		if err != nil {
			return notFoundOr(err, "return not found")
		}
		r.Confirm(now)
		n, err := s.txRepo.ConfirmReturn(ctx, r)
		if err != nil {
			return Unexpected(err)
		}
		if n == 0 {
			return Business("return was already confirmed")
		}
		ret = r
		if err := setListingState(ctx, s.listingRepo, s.logger, t.ListingID, model.ListingStateActive); err != nil {
			return err
		}
		return s.grantParties(ctx, t)
	})
	if err != nil {
		return nil, nil, err
	}
	s.notifyParties(ctx, t, fmt.Sprintf("The return for transaction #%d was confirmed", t.ID))
	return t, ret, nil
}

func (s *transactionService) load(ctx context.Context, id uint64) (*model.Transaction, error) {
	t, err := s.txRepo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "transaction not found")
	}
	return t, nil
}

func (s *transactionService) persistTransition(ctx context.Context, t *model.Transaction, from model.TransactionState) error {
	n, err := s.txRepo.UpdateState(ctx, t, from)
	if err != nil {
		return Unexpected(err)
	}
	if n == 0 {
		return Business("transaction was already processed")
	}
	return nil
}

// grantParties credits buyer and seller with the points earned by the deal.
func (s *transactionService) grantParties(ctx context.Context, t *model.Transaction) error {
	pts := t.EarnedPoints()
	if pts <= 0 {
		return nil
	}
	if err := s.points.Grant(ctx, t.BuyerUID, pts, &t.ID); err != nil {
		return err
	}
	return s.points.Grant(ctx, t.SellerUID, pts, &t.ID)
}

// setListingState tolerates a listing that no longer exists.
func setListingState(ctx context.Context, repo repository.ListingRepository, logger *zap.Logger, listingID uint64, state model.ListingState) error {
	err := repo.SetState(ctx, listingID, state)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Warn("listing missing on state update", withRID(ctx,
			zap.Uint64("listing_id", listingID), zap.String("state", string(state)))...)
		return nil
	}
	return Unexpected(err)
}

func (s *transactionService) notifyParties(ctx context.Context, t *model.Transaction, msg string) {
	s.notify.Notify(ctx, t.BuyerUID, model.NotificationKindTransaction, msg)
	s.notify.Notify(ctx, t.SellerUID, model.NotificationKindTransaction, msg)
}
