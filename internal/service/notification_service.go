package service

import (
	"context"
	"strings"
	"time"

	"github.com/shinyyama/book-market-backend/internal/events"
	"github.com/shinyyama/book-market-backend/internal/model"
	"github.com/shinyyama/book-market-backend/internal/repository"
	"go.uber.org/zap"
)

type NotificationService interface {
	Notify(ctx context.Context, recipientUID string, kind model.NotificationKind, message string)
	// List returns one inbox page and the unread count per kind.
	List(ctx context.Context, userUID string, f repository.NotificationFilter) ([]model.Notification, map[model.NotificationKind]int64, error)
	// MarkRead marks unread notifications of kind as read; an empty kind means all of them.
	MarkRead(ctx context.Context, userUID string, kind model.NotificationKind) (int64, error)
}

type notificationService struct {
	repo      repository.NotificationRepository
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewNotificationService(repo repository.NotificationRepository, publisher events.Publisher, logger *zap.Logger) NotificationService {
	if publisher == nil {
		publisher = &events.Fallback{Logger: logger}
	}
	return &notificationService{repo: repo, publisher: publisher, logger: logger, now: time.Now}
}

// Notify is best-effort; it logs errors but does not return them to avoid breaking main flows.
func (s *notificationService) Notify(ctx context.Context, recipientUID string, kind model.NotificationKind, message string) {
	if recipientUID == "" || kind == "" {
		return
	}
	ctx, cancel := withShortDeadline(context.WithoutCancel(ctx))
	defer cancel()

	n := &model.Notification{
		UserUID: recipientUID,
		Kind:    kind,
		Body:    message,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		s.logger.Warn("notification insert failed", withRID(ctx,
			zap.String("recipient", recipientUID), zap.String("kind", string(kind)), zap.Error(err))...)
		return
	}
	ev := events.NotificationEvent{
		NotificationID: n.ID,
		RecipientUID:   recipientUID,
		Kind:           string(kind),
		Message:        message,
		OccurredAt:     time.Now(),
	}
	if err := s.publisher.Publish(ctx, "notification."+strings.ToLower(string(kind)), ev); err != nil {
		s.logger.Warn("notification publish failed", withRID(ctx,
			zap.Uint64("notification_id", n.ID), zap.Error(err))...)
	}
}

func (s *notificationService) List(ctx context.Context, userUID string, f repository.NotificationFilter) ([]model.Notification, map[model.NotificationKind]int64, error) {
	if userUID == "" {
		return nil, nil, nil
	}
	if f.Kind != "" && !f.Kind.Valid() {
		return nil, nil, Validation("unknown notification kind")
	}
	list, err := s.repo.List(ctx, userUID, f)
	if err != nil {
		return nil, nil, Unexpected(err)
	}
	unread, err := s.repo.UnreadByKind(ctx, userUID)
	if err != nil {
		return nil, nil, Unexpected(err)
	}
	return list, unread, nil
}

func (s *notificationService) MarkRead(ctx context.Context, userUID string, kind model.NotificationKind) (int64, error) {
	if userUID == "" {
		return 0, nil
	}
	if kind != "" && !kind.Valid() {
		return 0, Validation("unknown notification kind")
	}
	n, err := s.repo.MarkRead(ctx, userUID, kind, s.now())
	if err != nil {
		return 0, Unexpected(err)
	}
	return n, nil
}

// withShortDeadline wraps context with a short deadline to avoid blocking main flow.
func withShortDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 2*time.Second)
}
