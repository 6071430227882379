package repository

import (
	"context"

	"github.com/shinyyama/book-market-backend/internal/model"
	"gorm.io/gorm"
)

type CustomerRepository interface {
	Exists(ctx context.Context, uid string) (bool, error)
	FindByUID(ctx context.Context, uid string) (*model.Customer, error)
	Create(ctx context.Context, c *model.Customer) error
}

type customerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &customerRepository{db: db}
}

func (r *customerRepository) Exists(ctx context.Context, uid string) (bool, error) {
	var cnt int64
	if err := conn(ctx, r.db).
		Model(&model.Customer{}).
		Where("uid = ?", uid).
		Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

func (r *customerRepository) FindByUID(ctx context.Context, uid string) (*model.Customer, error) {
	var c model.Customer
	if err := conn(ctx, r.db).Where("uid = ?", uid).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *customerRepository) Create(ctx context.Context, c *model.Customer) error {
	if err := conn(ctx, r.db).Create(c).Error; err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}
