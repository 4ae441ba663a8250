package postgres

import (
	"context"
	"fmt"
	"time"

	"notification-engine/internal/models"
)

// NotificationStore persists delivery attempt records in the notifications table.
type NotificationStore struct {
	db *DB
}

func NewNotificationStore(db *DB) *NotificationStore {
	return &NotificationStore{db: db}
}

func (s *NotificationStore) Create(ctx context.Context, n models.Notification) error {
	query := `
        INSERT INTO notifications (
            id, event_id, user_id, channel, status, recipient, subject, body,
            read, created_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := s.db.Pool.Exec(ctx, query,
		n.ID, n.EventID, n.UserID, n.Channel, n.Status, n.Recipient,
		n.Subject, n.Body, n.Read, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (s *NotificationStore) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	query := `
        UPDATE notifications
        SET status = 'sent', sent_at = $1
        WHERE id = $2 AND status = 'pending'`
	result, err := s.db.Pool.Exec(ctx, query, sentAt, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("no pending notification for id %s", id)
	}
	return nil
}

func (s *NotificationStore) MarkFailed(ctx context.Context, id string, errMsg string) error {
	query := `
        UPDATE notifications
        SET status = 'failed', error_message = $1
        WHERE id = $2 AND status = 'pending'`
	result, err := s.db.Pool.Exec(ctx, query, errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("no pending notification for id %s", id)
	}
	return nil
}

func (s *NotificationStore) ListByUser(ctx context.Context, userID int64, limit int, unreadOnly bool) ([]models.Notification, error) {
	query := `
        SELECT id, event_id, user_id, channel, status, recipient, subject, body,
               read, created_at, sent_at, error_message
        FROM notifications
        WHERE user_id = $1`
	args := []interface{}{userID}
	if unreadOnly {
		query += " AND read = false"
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, limit)
	}

	rows, err := s.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications for user_id %d: %w", userID, err)
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		var subject, errMsg *string
		err := rows.Scan(
			&n.ID, &n.EventID, &n.UserID, &n.Channel, &n.Status, &n.Recipient,
			&subject, &n.Body, &n.Read, &n.CreatedAt, &n.SentAt, &errMsg,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		if subject != nil {
			n.Subject = *subject
		}
		if errMsg != nil {
			n.ErrorMessage = *errMsg
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

func (s *NotificationStore) MarkRead(ctx context.Context, ids []string, userID int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `
        UPDATE notifications
        SET read = true
        WHERE id = ANY($1) AND user_id = $2 AND read = false`
	result, err := s.db.Pool.Exec(ctx, query, ids, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read for user_id %d: %w", userID, err)
	}
	return result.RowsAffected(), nil
}
