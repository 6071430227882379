package repository

import (
	"context"

	"github.com/shinyyama/book-market-backend/internal/model"
	"gorm.io/gorm"
)

type NegotiationRepository interface {
	Create(ctx context.Context, r *model.NegotiationRequest) error
	FindByID(ctx context.Context, id uint64) (*model.NegotiationRequest, error)
	LatestByConversation(ctx context.Context, conversationID uint64) (*model.NegotiationRequest, error)
	ListPendingBetween(ctx context.Context, listingID uint64, uidA, uidB string) ([]model.NegotiationRequest, error)
	// UpdateState moves the request from one state to another and returns the
	// number of rows changed; 0 means another caller already moved it.
	UpdateState(ctx context.Context, id uint64, from, to model.NegotiationState) (int64, error)
}

type negotiationRepository struct {
	db *gorm.DB
}

func NewNegotiationRepository(db *gorm.DB) NegotiationRepository {
	return &negotiationRepository{db: db}
}

func (r *negotiationRepository) Create(ctx context.Context, req *model.NegotiationRequest) error {
	return conn(ctx, r.db).Create(req).Error
}

func (r *negotiationRepository) FindByID(ctx context.Context, id uint64) (*model.NegotiationRequest, error) {
	var req model.NegotiationRequest
	if err := conn(ctx, r.db).First(&req, id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *negotiationRepository) LatestByConversation(ctx context.Context, conversationID uint64) (*model.NegotiationRequest, error) {
	var req model.NegotiationRequest
	if err := conn(ctx, r.db).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *negotiationRepository) ListPendingBetween(ctx context.Context, listingID uint64, uidA, uidB string) ([]model.NegotiationRequest, error) {
	var list []model.NegotiationRequest
	if err := conn(ctx, r.db).
		Where("listing_id = ? AND state = ?", listingID, model.NegotiationPending).
		Where("(buyer_uid = ? AND seller_uid = ?) OR (buyer_uid = ? AND seller_uid = ?)", uidA, uidB, uidB, uidA).
		Order("id ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *negotiationRepository) UpdateState(ctx context.Context, id uint64, from, to model.NegotiationState) (int64, error) {
	res := conn(ctx, r.db).
		Model(&model.NegotiationRequest{}).
		Where("id = ? AND state = ?", id, from).
		Update("state", to)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
