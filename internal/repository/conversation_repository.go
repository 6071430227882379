package repository

import (
	"context"

	"github.com/shinyyama/book-market-backend/internal/model"
	"gorm.io/gorm"
)

type ConversationRepository interface {
	FindByID(ctx context.Context, id uint64) (*model.Conversation, error)
	FindBetween(ctx context.Context, listingID uint64, buyerUID, sellerUID string) (*model.Conversation, error)
	Create(ctx context.Context, cv *model.Conversation) error
}

type conversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) FindByID(ctx context.Context, id uint64) (*model.Conversation, error) {
	var cv model.Conversation
	if err := conn(ctx, r.db).First(&cv, id).Error; err != nil {
		return nil, err
	}
	return &cv, nil
}

func (r *conversationRepository) FindBetween(ctx context.Context, listingID uint64, buyerUID, sellerUID string) (*model.Conversation, error) {
	var cv model.Conversation
	if err := conn(ctx, r.db).
		Where("listing_id = ? AND buyer_uid = ? AND seller_uid = ?", listingID, buyerUID, sellerUID).
		First(&cv).Error; err != nil {
		return nil, err
	}
	return &cv, nil
}

func (r *conversationRepository) Create(ctx context.Context, cv *model.Conversation) error {
	if err := conn(ctx, r.db).Create(cv).Error; err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}
