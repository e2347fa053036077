package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/askarthikey/cleverSM/internal/core/domain"
	"github.com/askarthikey/cleverSM/internal/core/ports"
)

const requestColumns = `id, sender_id, sender_username, recipient_id, recipient_username, status, message, created_at, updated_at`

type FollowRequestRepository struct {
	db *pgxpool.Pool
}

func (r *FollowRequestRepository) Create(ctx context.Context, req *domain.FollowRequest) error {
	q := `
		INSERT INTO follow_requests (` + requestColumns + `)
		VALUES (@id, @sender_id, @sender_username, @recipient_id, @recipient_username, @status, @message, @created_at, @updated_at)
	`
	args := pgx.NamedArgs{
		"id":                 req.ID,
		"sender_id":          req.SenderID,
		"sender_username":    req.SenderUsername,
		"recipient_id":       req.RecipientID,
		"recipient_username": req.RecipientUsername,
		"status":             string(req.Status),
		"message":            req.Message,
		"created_at":         req.CreatedAt,
		"updated_at":         req.UpdatedAt,
	}
	if _, err := r.db.Exec(ctx, q, args); err != nil {
		return fmt.Errorf("db: insert follow request: %w", handleError(err))
	}
	return nil
}

func (r *FollowRequestRepository) GetByID(ctx context.Context, id string) (*domain.FollowRequest, error) {
	return r.queryOne(ctx, `SELECT `+requestColumns+` FROM follow_requests WHERE id = $1`, id)
}

func (r *FollowRequestRepository) FindPending(ctx context.Context, senderID, recipientID string) (*domain.FollowRequest, error) {
	return r.queryOne(ctx, `SELECT `+requestColumns+` FROM follow_requests
		WHERE sender_id = $1 AND recipient_id = $2 AND status = 'pending'`, senderID, recipientID)
}

// Transition : UPDATE gardé par status = 'pending'. Une seule transaction concurrente l'emporte.
func (r *FollowRequestRepository) Transition(ctx context.Context, id, recipientID string, to domain.FollowStatus) (*domain.FollowRequest, error) {
	if !to.IsTerminal() {
		return nil, domain.ErrInvalidTransition
	}
	return r.queryOne(ctx, `UPDATE follow_requests SET status = $3, updated_at = $4
		WHERE id = $1 AND recipient_id = $2 AND status = 'pending'
		RETURNING `+requestColumns, id, recipientID, string(to), time.Now().UTC())
}

func (r *FollowRequestRepository) Cancel(ctx context.Context, senderID, recipientID string) (*domain.FollowRequest, error) {
	return r.queryOne(ctx, `UPDATE follow_requests SET status = 'cancelled', updated_at = $3
		WHERE sender_id = $1 AND recipient_id = $2 AND status = 'pending'
		RETURNING `+requestColumns, senderID, recipientID, time.Now().UTC())
}

func (r *FollowRequestRepository) Restore(ctx context.Context, id string, from domain.FollowStatus) error {
	_, err := r.queryOne(ctx, `UPDATE follow_requests SET status = 'pending', updated_at = $3
		WHERE id = $1 AND status = $2
		RETURNING `+requestColumns, id, string(from), time.Now().UTC())
	return err
}

func (r *FollowRequestRepository) ListPendingForRecipient(ctx context.Context, recipientID string, page ports.Page) ([]*domain.FollowRequest, int64, error) {
	page = page.Normalize()
	reqs, err := r.query(ctx, `SELECT `+requestColumns+` FROM follow_requests
		WHERE recipient_id = $1 AND status = 'pending'
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, recipientID, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, err
	}

	var total int64
	err = r.db.QueryRow(ctx, `SELECT count(*) FROM follow_requests WHERE recipient_id = $1 AND status = 'pending'`, recipientID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("db: count follow requests: %w", err)
	}
	return reqs, total, nil
}

func (r *FollowRequestRepository) ListPendingBySender(ctx context.Context, senderID string) ([]*domain.FollowRequest, error) {
	return r.query(ctx, `SELECT `+requestColumns+` FROM follow_requests
		WHERE sender_id = $1 AND status = 'pending'
		ORDER BY created_at DESC`, senderID)
}

func (r *FollowRequestRepository) queryOne(ctx context.Context, q string, args ...any) (*domain.FollowRequest, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("db: follow request: %w", handleError(err))
	}
	req, err := pgx.CollectExactlyOneRow(rows, scanRequest)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrFollowRequestNotFound
		}
		return nil, fmt.Errorf("db: follow request: %w", handleError(err))
	}
	return req, nil
}

func (r *FollowRequestRepository) query(ctx context.Context, q string, args ...any) ([]*domain.FollowRequest, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("db: list follow requests: %w", err)
	}
	reqs, err := pgx.CollectRows(rows, scanRequest)
	if err != nil {
		return nil, fmt.Errorf("db: scan follow requests: %w", err)
	}
	return reqs, nil
}

func scanRequest(row pgx.CollectableRow) (*domain.FollowRequest, error) {
	var (
		req    domain.FollowRequest
		status string
	)
	err := row.Scan(&req.ID, &req.SenderID, &req.SenderUsername, &req.RecipientID, &req.RecipientUsername,
		&status, &req.Message, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, err
	}
	req.Status = domain.FollowStatus(status)
	return &req, nil
}
