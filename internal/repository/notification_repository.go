package repository

import (
	"context"
	"time"

	"github.com/shinyyama/book-market-backend/internal/model"
	"gorm.io/gorm"
)

const (
	defaultNotificationPage = 20
	maxNotificationPage     = 50
)

// NotificationFilter narrows an inbox listing. Zero values mean "any".
// BeforeID pages backwards from the oldest id the caller has seen.
type NotificationFilter struct {
	UnreadOnly bool
	Kind       model.NotificationKind
	BeforeID   uint64
	Limit      int
}

func (f NotificationFilter) pageSize() int {
	if f.Limit <= 0 {
		return defaultNotificationPage
	}
	return min(f.Limit, maxNotificationPage)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	List(ctx context.Context, userUID string, f NotificationFilter) ([]model.Notification, error)
	// MarkRead stamps unread notifications of kind (every kind when empty) and
	// returns how many changed.
	MarkRead(ctx context.Context, userUID string, kind model.NotificationKind, at time.Time) (int64, error)
	UnreadByKind(ctx context.Context, userUID string) (map[model.NotificationKind]int64, error)
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	return conn(ctx, r.db).Create(n).Error
}

func (r *notificationRepository) List(ctx context.Context, userUID string, f NotificationFilter) ([]model.Notification, error) {
	q := conn(ctx, r.db).Where("user_uid = ?", userUID)
	if f.UnreadOnly {
		q = q.Where("read_at IS NULL")
	}
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	if f.BeforeID > 0 {
		q = q.Where("id < ?", f.BeforeID)
	}
	var list []model.Notification
	if err := q.Order("id DESC").Limit(f.pageSize()).Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, userUID string, kind model.NotificationKind, at time.Time) (int64, error) {
	q := conn(ctx, r.db).Model(&model.Notification{}).Where("user_uid = ? AND read_at IS NULL", userUID)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	res := q.Update("read_at", at)
	return res.RowsAffected, res.Error
}

func (r *notificationRepository) UnreadByKind(ctx context.Context, userUID string) (map[model.NotificationKind]int64, error) {
	var rows []struct {
		Kind model.NotificationKind
		N    int64
	}
	if err := conn(ctx, r.db).
		Model(&model.Notification{}).
		Select("kind, COUNT(*) AS n").
		Where("user_uid = ? AND read_at IS NULL", userUID).
		Group("kind").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[model.NotificationKind]int64, len(rows))
	for _, row := range rows {
		out[row.Kind] = row.N
	}
	return out, nil
}
