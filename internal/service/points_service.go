package service

import (
	"context"
	"errors"

	"github.com/shinyyama/book-market-backend/internal/imagestore"
	"github.com/shinyyama/book-market-backend/internal/model"
	"github.com/shinyyama/book-market-backend/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type PointsService interface {
	Spend(ctx context.Context, uid string, amount int64, transactionID *uint64) error
	Grant(ctx context.Context, uid string, amount int64, transactionID *uint64) error
	Balance(ctx context.Context, uid string) (int64, error)
	History(ctx context.Context, uid string) ([]PointsHistoryEntry, error)
}

// PointsHistoryEntry is a ledger entry plus the listing of its transaction, if any.
type PointsHistoryEntry struct {
	Entry        model.PointsLedgerEntry
	ListingTitle *string
	ListingImage *string
	ListingPrice *decimal.Decimal
}

type pointsService struct {
	pointsRepo   repository.PointsRepository
	customerRepo repository.CustomerRepository
	txRepo       repository.TransactionRepository
	listingRepo  repository.ListingRepository
	images       imagestore.URLResolver
	logger       *zap.Logger
}

func NewPointsService(
	pointsRepo repository.PointsRepository,
	customerRepo repository.CustomerRepository,
	txRepo repository.TransactionRepository,
	listingRepo repository.ListingRepository,
	images imagestore.URLResolver,
	logger *zap.Logger,
) PointsService {
	if images == nil {
		images = imagestore.Passthrough{}
	}
	return &pointsService{
		pointsRepo:   pointsRepo,
		customerRepo: customerRepo,
		txRepo:       txRepo,
		listingRepo:  listingRepo,
		images:       images,
		logger:       logger,
	}
}

func (s *pointsService) Spend(ctx context.Context, uid string, amount int64, transactionID *uint64) error {
	if amount < 0 {
		return Validation("points amount cannot be negative")
	}
	c, err := s.customerRepo.FindByUID(ctx, uid)
	if err != nil {
		return notFoundOr(err, "customer not found")
	}
	if amount > c.PointsBalance {
		return Validation("insufficient points")
	}
	if amount == 0 {
		return nil
	}
	if _, err := s.pointsRepo.Spend(ctx, uid, amount, transactionID); err != nil {
		if errors.Is(err, repository.ErrInsufficientPoints) {
			return Validation("insufficient points")
		}
		return notFoundOr(err, "customer not found")
	}
	return nil
}

func (s *pointsService) Grant(ctx context.Context, uid string, amount int64, transactionID *uint64) error {
	if amount < 0 {
		return Validation("points amount cannot be negative")
	}
	ok, err := s.customerRepo.Exists(ctx, uid)
	if err != nil {
		return Unexpected(err)
	}
	if !ok {
		return NotFound("customer not found")
	}
	if amount == 0 {
		return nil
	}
	if _, err := s.pointsRepo.Grant(ctx, uid, amount, transactionID); err != nil {
		return notFoundOr(err, "customer not found")
	}
	return nil
}

func (s *pointsService) Balance(ctx context.Context, uid string) (int64, error) {
	c, err := s.customerRepo.FindByUID(ctx, uid)
	if err != nil {
		return 0, notFoundOr(err, "customer not found")
	}
	return c.PointsBalance, nil
}

func (s *pointsService) History(ctx context.Context, uid string) ([]PointsHistoryEntry, error) {
	entries, err := s.pointsRepo.ListEntries(ctx, uid)
	if err != nil {
		return nil, Unexpected(err)
	}
	if len(entries) == 0 {
		return nil, NotFound("no points history")
	}
	listings := make(map[uint64]*model.Listing)
	resp := make([]PointsHistoryEntry, 0, len(entries))
	for _, e := range entries {
		row := PointsHistoryEntry{Entry: e}
		if e.TransactionID != nil {
			if l := s.listingForTransaction(ctx, *e.TransactionID, listings); l != nil {
				title := l.Title
				price := l.Price
				row.ListingTitle = &title
				row.ListingPrice = &price
				row.ListingImage = s.resolveImage(ctx, l)
			}
		}
		resp = append(resp, row)
	}
	return resp, nil
}

func (s *pointsService) listingForTransaction(ctx context.Context, transactionID uint64, cache map[uint64]*model.Listing) *model.Listing {
	t, err := s.txRepo.FindByID(ctx, transactionID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("history transaction lookup failed", withRID(ctx, zap.Uint64("transaction_id", transactionID), zap.Error(err))...)
		}
		return nil
	}
	if l, ok := cache[t.ListingID]; ok {
		return l
	}
	l, err := s.listingRepo.FindByID(ctx, t.ListingID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("history listing lookup failed", withRID(ctx, zap.Uint64("listing_id", t.ListingID), zap.Error(err))...)
			return nil
		}
		l = nil
	}
	cache[t.ListingID] = l
	return l
}

func (s *pointsService) resolveImage(ctx context.Context, l *model.Listing) *string {
	if l.ImageURL == nil || *l.ImageURL == "" {
		return nil
	}
	u, err := s.images.Resolve(ctx, *l.ImageURL)
	if err != nil {
		s.logger.Warn("listing image url resolve failed", withRID(ctx, zap.Uint64("listing_id", l.ID), zap.Error(err))...)
		return l.ImageURL
	}
	return &u
}
