package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/askarthikey/cleverSM/internal/core/domain"
	"github.com/askarthikey/cleverSM/internal/core/ports"
)

const notificationColumns = `id, recipient_id, sender_id, sender_username, type, message,
	follow_request_id, post_id, comment_id, is_read, created_at, updated_at`

type NotificationRepository struct {
	db *pgxpool.Pool
}

func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	q := `
		INSERT INTO notifications (` + notificationColumns + `)
		VALUES (@id, @recipient_id, @sender_id, @sender_username, @type, @message,
			@follow_request_id, @post_id, @comment_id, @is_read, @created_at, @updated_at)
	`
	args := pgx.NamedArgs{
		"id":                n.ID,
		"recipient_id":      n.RecipientID,
		"sender_id":         n.SenderID,
		"sender_username":   n.SenderUsername,
		"type":              string(n.Type),
		"message":           n.Message,
		"follow_request_id": nullable(n.Data.FollowRequestID),
		"post_id":           nullable(n.Data.PostID),
		"comment_id":        nullable(n.Data.CommentID),
		"is_read":           n.IsRead,
		"created_at":        n.CreatedAt,
		"updated_at":        n.UpdatedAt,
	}
	if _, err := r.db.Exec(ctx, q, args); err != nil {
		return fmt.Errorf("db: insert notification: %w", err)
	}
	return nil
}

func (r *NotificationRepository) ListForRecipient(ctx context.Context, recipientID string, page ports.Page) ([]*domain.Notification, int64, error) {
	page = page.Normalize()
	rows, err := r.db.Query(ctx, `SELECT `+notificationColumns+` FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, recipientID, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("db: list notifications: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanNotification)
	if err != nil {
		return nil, 0, fmt.Errorf("db: scan notifications: %w", err)
	}

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM notifications WHERE recipient_id = $1`, recipientID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("db: count notifications: %w", err)
	}
	return items, total, nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM notifications WHERE recipient_id = $1 AND NOT is_read`, recipientID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("db: count unread: %w", err)
	}
	return n, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id, recipientID string) error {
	tag, err := r.db.Exec(ctx, `UPDATE notifications SET is_read = TRUE, updated_at = $3
		WHERE id = $1 AND recipient_id = $2`, id, recipientID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("db: mark read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `UPDATE notifications SET is_read = TRUE, updated_at = $2
		WHERE recipient_id = $1 AND NOT is_read`, recipientID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("db: mark all read: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *NotificationRepository) Delete(ctx context.Context, id, recipientID string) error {
	return r.deleteOne(ctx, `DELETE FROM notifications WHERE id = $1 AND recipient_id = $2`, id, recipientID)
}

func (r *NotificationRepository) DeleteByFollowRequest(ctx context.Context, recipientID, senderID, followRequestID string) error {
	return r.deleteOne(ctx, `DELETE FROM notifications
		WHERE recipient_id = $1 AND sender_id = $2 AND type = 'follow_request' AND follow_request_id = $3`,
		recipientID, senderID, followRequestID)
}

func (r *NotificationRepository) deleteOne(ctx context.Context, q string, args ...any) error {
	tag, err := r.db.Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("db: delete notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

func scanNotification(row pgx.CollectableRow) (*domain.Notification, error) {
	var (
		n                        domain.Notification
		typ                      string
		requestID, post, comment *string
	)
	err := row.Scan(&n.ID, &n.RecipientID, &n.SenderID, &n.SenderUsername, &typ, &n.Message,
		&requestID, &post, &comment, &n.IsRead, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	n.Type = domain.NotificationType(typ)
	n.Data = domain.NotificationData{FollowRequestID: deref(requestID), PostID: deref(post), CommentID: deref(comment)}
	return &n, nil
}
