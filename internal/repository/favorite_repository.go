package repository

import (
	"context"

	"github.com/shinyyama/book-market-backend/internal/model"
	"gorm.io/gorm"
)

type FavoriteRepository interface {
	ListByListing(ctx context.Context, listingID uint64) ([]model.Favorite, error)
}

type favoriteRepository struct {
	db *gorm.DB
}

func NewFavoriteRepository(db *gorm.DB) FavoriteRepository {
	return &favoriteRepository{db: db}
}

func (r *favoriteRepository) ListByListing(ctx context.Context, listingID uint64) ([]model.Favorite, error) {
	var list []model.Favorite
	if err := conn(ctx, r.db).
		Where("listing_id = ?", listingID).
		Order("created_at ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
