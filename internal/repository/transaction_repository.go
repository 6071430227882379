package repository

import (
	"context"

	"github.com/shinyyama/book-market-backend/internal/model"
	"gorm.io/gorm"
)

type TransactionRepository interface {
	Create(ctx context.Context, t *model.Transaction) error
	FindByID(ctx context.Context, id uint64) (*model.Transaction, error)
	FindByNegotiation(ctx context.Context, negotiationID uint64) (*model.Transaction, error)
	// UpdateState persists t.State (and its timestamps) only if the stored row is
	// still in state from. It returns the number of rows changed.
	UpdateState(ctx context.Context, t *model.Transaction, from model.TransactionState) (int64, error)

	CreateReturn(ctx context.Context, r *model.Return) error
	FindReturnByTransaction(ctx context.Context, transactionID uint64) (*model.Return, error)
	ConfirmReturn(ctx context.Context, r *model.Return) (int64, error)
}

type transactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(ctx context.Context, t *model.Transaction) error {
	if err := conn(ctx, r.db).Create(t).Error; err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *transactionRepository) FindByID(ctx context.Context, id uint64) (*model.Transaction, error) {
	var t model.Transaction
	if err := conn(ctx, r.db).First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *transactionRepository) FindByNegotiation(ctx context.Context, negotiationID uint64) (*model.Transaction, error) {
	var t model.Transaction
	if err := conn(ctx, r.db).
		Where("negotiation_request_id = ?", negotiationID).
		First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *transactionRepository) UpdateState(ctx context.Context, t *model.Transaction, from model.TransactionState) (int64, error) {
	res := conn(ctx, r.db).
		Model(&model.Transaction{}).
		Where("id = ? AND state = ?", t.ID, from).
		Updates(map[string]interface{}{
			"state":        t.State,
			"concluded_at": t.ConcludedAt,
			"canceled_at":  t.CanceledAt,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *transactionRepository) CreateReturn(ctx context.Context, ret *model.Return) error {
	if err := conn(ctx, r.db).Create(ret).Error; err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *transactionRepository) FindReturnByTransaction(ctx context.Context, transactionID uint64) (*model.Return, error) {
	var ret model.Return
	if err := conn(ctx, r.db).
		Where("transaction_id = ?", transactionID).
		First(&ret).Error; err != nil {
		return nil, err
	}
	return &ret, nil
}

func (r *transactionRepository) ConfirmReturn(ctx context.Context, ret *model.Return) (int64, error) {
	res := conn(ctx, r.db).
		Model(&model.Return{}).
		Where("id = ? AND confirmed = ?", ret.ID, false).
		Updates(map[string]interface{}{
			"confirmed":           true,
			"seller_confirmed_at": ret.SellerConfirmedAt,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
