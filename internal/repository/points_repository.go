package repository

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shinyyama/book-market-backend/internal/model"
	"gorm.io/gorm"
)

var ErrInsufficientPoints = errors.New("insufficient points")

// PointsRepository is the only writer of customers.points_balance. Every balance
// change is committed together with its ledger entry.
type PointsRepository interface {
	Spend(ctx context.Context, uid string, amount int64, transactionID *uint64) (*model.PointsLedgerEntry, error)
	Grant(ctx context.Context, uid string, amount int64, transactionID *uint64) (*model.PointsLedgerEntry, error)
	ListEntries(ctx context.Context, uid string) ([]model.PointsLedgerEntry, error)
}

type pointsRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewPointsRepository(db *gorm.DB) PointsRepository {
	return &pointsRepository{db: db, now: time.Now}
}

func (r *pointsRepository) Spend(ctx context.Context, uid string, amount int64, transactionID *uint64) (*model.PointsLedgerEntry, error) {
	var entry *model.PointsLedgerEntry
	err := conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Customer{}).
			Where("uid = ? AND points_balance >= ?", uid, amount).
			Update("points_balance", gorm.Expr("points_balance - ?", amount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var c model.Customer
			if err := tx.Select("uid").Where("uid = ?", uid).First(&c).Error; err != nil {
				return err
			}
			return ErrInsufficientPoints
		}
		e, err := r.append(tx, uid, model.LedgerKindSpend, amount, transactionID)
		entry = e
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *pointsRepository) Grant(ctx context.Context, uid string, amount int64, transactionID *uint64) (*model.PointsLedgerEntry, error) {
	var entry *model.PointsLedgerEntry
	err := conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Customer{}).
			Where("uid = ?", uid).
			Update("points_balance", gorm.Expr("points_balance + ?", amount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		e, err := r.append(tx, uid, model.LedgerKindGrant, amount, transactionID)
		entry = e
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *pointsRepository) ListEntries(ctx context.Context, uid string) ([]model.PointsLedgerEntry, error) {
	var list []model.PointsLedgerEntry
	if err := conn(ctx, r.db).
		Where("customer_uid = ?", uid).
		Order("occurred_at DESC, id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *pointsRepository) append(tx *gorm.DB, uid string, kind model.LedgerKind, amount int64, transactionID *uint64) (*model.PointsLedgerEntry, error) {
	now := r.now()
	e := &model.PointsLedgerEntry{
		ID:            ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		CustomerUID:   uid,
		TransactionID: transactionID,
		Kind:          kind,
		Amount:        amount,
		OccurredAt:    now,
	}
	if err := tx.Create(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}
