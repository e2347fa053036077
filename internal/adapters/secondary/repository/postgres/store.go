// Package postgres est le store relationnel alternatif (STORE_DRIVER=postgres).
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/askarthikey/cleverSM/internal/core/domain"
	"github.com/askarthikey/cleverSM/internal/core/ports"
)

//go:embed schema.sql
var schema string

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{db: pool}
}

var (
	_ ports.UserRepository          = (*UserRepository)(nil)
	_ ports.FollowRequestRepository = (*FollowRequestRepository)(nil)
	_ ports.NotificationRepository  = (*NotificationRepository)(nil)
)

func (s *Store) Users() *UserRepository { return &UserRepository{db: s.db} }

func (s *Store) FollowRequests() *FollowRequestRepository { return &FollowRequestRepository{db: s.db} }

func (s *Store) Notifications() *NotificationRepository { return &NotificationRepository{db: s.db} }

// EnsureSchema applique schema.sql (idempotent : IF NOT EXISTS partout).
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("db: ensure schema: %w", err)
	}
	return nil
}

// handleError traduit les codes d'erreur PostgreSQL en erreurs du domaine.
func handleError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		switch pgErr.ConstraintName {
		case "uniq_username":
			return domain.ErrUsernameTaken
		case "uniq_email":
			return domain.ErrEmailTaken
		case "uniq_phone":
			return domain.ErrPhoneTaken
		case "uniq_pending_follow_request":
			return domain.ErrFollowRequestExists
		}
	case codeForeignKeyViolation:
		return domain.ErrUserNotFound
	}
	return err
}

// nullable : "" -> NULL (les index uniques partiels ignorent NULL).
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
