package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/askarthikey/cleverSM/internal/core/domain"
	"github.com/askarthikey/cleverSM/internal/core/ports"
)

// Les deux côtés du graphe sont lus depuis la table follows.
const userColumns = `
	u.id, u.username, u.email, u.phone, u.password_hash, u.profile_picture, u.bio, u.is_verified,
	u.created_at, u.updated_at,
	ARRAY(SELECT f.follower_id FROM follows f WHERE f.target_id = u.id ORDER BY f.created_at) AS followers,
	ARRAY(SELECT f.target_id FROM follows f WHERE f.follower_id = u.id ORDER BY f.created_at) AS following`

type UserRepository struct {
	db *pgxpool.Pool
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	q := `
		INSERT INTO users (id, username, username_lower, email, phone, password_hash, profile_picture, bio, is_verified, created_at, updated_at)
		VALUES (@id, @username, @username_lower, @email, @phone, @password_hash, @profile_picture, @bio, @is_verified, @created_at, @updated_at)
	`
	args := pgx.NamedArgs{
		"id":              user.ID,
		"username":        user.Username,
		"username_lower":  strings.ToLower(user.Username),
		"email":           nullable(user.Email),
		"phone":           nullable(user.Phone),
		"password_hash":   user.PasswordHash,
		"profile_picture": user.ProfilePicture,
		"bio":             user.Bio,
		"is_verified":     user.IsVerified,
		"created_at":      user.CreatedAt,
		"updated_at":      user.UpdatedAt,
	}
	if _, err := r.db.Exec(ctx, q, args); err != nil {
		return fmt.Errorf("db: insert user: %w", handleError(err))
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.queryOne(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = $1`, id)
}

func (r *UserRepository) GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users u
		WHERE u.username_lower = lower($1) OR u.email = lower($1) OR u.phone = $1
		LIMIT 1`
	return r.queryOne(ctx, q, identifier)
}

func (r *UserRepository) queryOne(ctx context.Context, q string, args ...any) (*domain.User, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("db: get user: %w", err)
	}
	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("db: scan user: %w", err)
	}
	return u, nil
}

// GetByIDs : un seul aller-retour (id = ANY), ordre des IDs conservé.
func (r *UserRepository) GetByIDs(ctx context.Context, ids []string) ([]*domain.User, error) {
	if len(ids) == 0 {
		return []*domain.User{}, nil
	}
	q := `SELECT ` + userColumns + ` FROM users u
		JOIN unnest($1::text[]) WITH ORDINALITY AS wanted(id, pos) ON wanted.id = u.id
		ORDER BY wanted.pos`
	return r.query(ctx, q, ids)
}

func (r *UserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username_lower = lower($1))`, username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db: username exists: %w", err)
	}
	return exists, nil
}

func (r *UserRepository) Search(ctx context.Context, query, excludeID string, page ports.Page) ([]*domain.User, int64, error) {
	page = page.Normalize()
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"

	users, err := r.query(ctx, `SELECT `+userColumns+` FROM users u
		WHERE u.username_lower LIKE $1 AND u.id <> $2
		ORDER BY u.username_lower
		LIMIT $3 OFFSET $4`, pattern, excludeID, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, err
	}

	var total int64
	err = r.db.QueryRow(ctx, `SELECT count(*) FROM users WHERE username_lower LIKE $1 AND id <> $2`, pattern, excludeID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("db: count search: %w", err)
	}
	return users, total, nil
}

func (r *UserRepository) ListExcluding(ctx context.Context, exclude []string, offset, limit int) ([]*domain.User, int64, error) {
	var total int64
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM users WHERE NOT (id = ANY($1::text[]))`, exclude).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("db: count suggestions: %w", err)
	}
	if limit <= 0 || int64(offset) >= total {
		return []*domain.User{}, total, nil
	}

	users, err := r.query(ctx, `SELECT `+userColumns+` FROM users u
		WHERE NOT (u.id = ANY($1::text[]))
		ORDER BY u.created_at DESC, u.id
		LIMIT $2 OFFSET $3`, exclude, limit, max(offset, 0))
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *UserRepository) query(ctx context.Context, q string, args ...any) ([]*domain.User, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("db: list users: %w", err)
	}
	users, err := pgx.CollectRows(rows, scanUser)
	if err != nil {
		return nil, fmt.Errorf("db: scan users: %w", err)
	}
	return users, nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, hash string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`, id, hash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("db: update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// AddFollowEdge : arête + horodatage des deux utilisateurs dans une même transaction.
func (r *UserRepository) AddFollowEdge(ctx context.Context, followerID, targetID string) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO follows (follower_id, target_id) VALUES ($1, $2)
			ON CONFLICT (follower_id, target_id) DO NOTHING`, followerID, targetID)
		if err != nil {
			return handleError(err)
		}
		if tag.RowsAffected() == 0 {
			return nil // déjà présente
		}
		_, err = tx.Exec(ctx, `UPDATE users SET updated_at = now() WHERE id IN ($1, $2)`, followerID, targetID)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("db: add follow edge: %w", err)
	}
	return nil
}

func (r *UserRepository) RemoveFollowEdge(ctx context.Context, followerID, targetID string) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM follows WHERE follower_id = $1 AND target_id = $2`, followerID, targetID)
		if err != nil || tag.RowsAffected() == 0 {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE users SET updated_at = now() WHERE id IN ($1, $2)`, followerID, targetID)
		return err
	})
	if err != nil {
		return fmt.Errorf("db: remove follow edge: %w", err)
	}
	return nil
}

func (r *UserRepository) IsFollowing(ctx context.Context, followerID, targetID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM follows WHERE follower_id = $1 AND target_id = $2)`,
		followerID, targetID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db: is following: %w", err)
	}
	return exists, nil
}

// --- HELPERS ---

func scanUser(row pgx.CollectableRow) (*domain.User, error) {
	var (
		u            domain.User
		email, phone *string
	)
	err := row.Scan(&u.ID, &u.Username, &email, &phone, &u.PasswordHash, &u.ProfilePicture, &u.Bio, &u.IsVerified,
		&u.CreatedAt, &u.UpdatedAt, &u.Followers, &u.Following)
	if err != nil {
		return nil, err
	}
	u.Email, u.Phone = deref(email), deref(phone)
	return &u, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
