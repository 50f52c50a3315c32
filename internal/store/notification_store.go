package store

import (
	"context"

	"savingscredit/internal/models"
)

const notificationColumns = `id, user_id, type, title, message, read, sent_at`

type NotificationStore struct {
	db DB
}

func NewNotificationStore(db DB) *NotificationStore {
	return &NotificationStore{db: db}
}

func (s *NotificationStore) Create(ctx context.Context, n models.Notification) (models.Notification, error) {
	var row models.Notification
	err := s.db.GetContext(ctx, &row, `
		INSERT INTO notifications (id, user_id, type, title, message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+notificationColumns,
		n.ID, n.UserID, n.Type, n.Title, n.Message)
	if err != nil {
		return models.Notification{}, err
	}
	return row, nil
}

func (s *NotificationStore) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	rows := []models.Notification{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE user_id = $1 AND ($2 = false OR read = false)
		ORDER BY sent_at DESC
		LIMIT $3 OFFSET $4
	`, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *NotificationStore) CountByUser(ctx context.Context, userID string, unreadOnly bool) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(1) FROM notifications
		WHERE user_id = $1 AND ($2 = false OR read = false)
	`, userID, unreadOnly)
	return count, err
}

// MarkRead returns sql.ErrNoRows when the notification is missing or not the user's.
func (s *NotificationStore) MarkRead(ctx context.Context, id, userID string) (models.Notification, error) {
	var row models.Notification
	err := s.db.GetContext(ctx, &row, `
		UPDATE notifications SET read = true
		WHERE id = $1 AND user_id = $2
		RETURNING `+notificationColumns,
		id, userID)
	if err != nil {
		return models.Notification{}, err
	}
	return row, nil
}
