package services

import (
	"context"
	"errors"

	"savingscredit/internal/logger"
	"savingscredit/internal/models"
	"savingscredit/internal/notifications"
	"savingscredit/internal/store"

	"github.com/sirupsen/logrus"
)

type NotificationStore interface {
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]models.Notification, error)
	CountByUser(ctx context.Context, userID string, unreadOnly bool) (int, error)
	MarkRead(ctx context.Context, id, userID string) (models.Notification, error)
}

type NotificationDeliverer interface {
	Deliver(ctx context.Context, msg notifications.Message) (models.Notification, error)
}

type NotificationService struct {
	store     NotificationStore
	deliverer NotificationDeliverer
}

func NewNotificationService(store NotificationStore, deliverer NotificationDeliverer) *NotificationService {
	return &NotificationService{store: store, deliverer: deliverer}
}

// Create persists and pushes a notification synchronously, unlike Notify.
func (s *NotificationService) Create(ctx context.Context, msg notifications.Message) (models.Notification, error) {
	record, err := s.deliverer.Deliver(ctx, msg)
	if errors.Is(err, notifications.ErrInvalidMessage) {
		return models.Notification{}, BadRequest("Missing required notification fields")
	}
	return record, err
}

func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, page PageRequest) (Page[models.Notification], error) {
	page = page.Normalize()
	rows, err := s.store.ListByUser(ctx, userID, unreadOnly, page.Limit, page.Offset())
	if err != nil {
		return Page[models.Notification]{}, err
	}
	total, err := s.store.CountByUser(ctx, userID, unreadOnly)
	if err != nil {
		return Page[models.Notification]{}, err
	}
	return NewPage(rows, total, page), nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) (models.Notification, error) {
	record, err := s.store.MarkRead(ctx, notificationID, userID)
	if store.IsNotFound(err) {
		return models.Notification{}, NotFound(MsgNotificationNotFound)
	}
	return record, err
}

// notifyBestEffort hands msg to notifier and swallows the outcome.
func notifyBestEffort(ctx context.Context, notifier Notifier, log logrus.FieldLogger, msg notifications.Message) {
	if notifier == nil {
		return
	}
	if err := notifier.Notify(ctx, msg); err != nil {
		log.WithError(err).WithField("user_id", msg.UserID).Debug("notification not queued")
	}
}

func orDiscard(log logrus.FieldLogger) logrus.FieldLogger {
	if log == nil {
		return logger.Discard()
	}
	return log
}
