// Package pendinglogins provides a PostgreSQL-backed repository for the
// pending-login markers used by the two-step (password, then MFA) flow.
package pendinglogins

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/psharma/securenotes/internal/common"
	"github.com/psharma/securenotes/internal/dbx"
	"github.com/psharma/securenotes/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new marker.
func (r *PostgresRepository) Create(ctx context.Context, login *models.PendingLogin) error {
	query := `
		INSERT INTO pending_logins (marker, user_id, origin, expires_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.ExecContext(ctx, query,
		login.Marker, login.UserID, login.Origin, login.ExpiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Consume flips the consumed flag in a single statement. The WHERE clause
// guards against reuse and expiry, so two concurrent submissions of the same
// marker can never both succeed.
func (r *PostgresRepository) Consume(ctx context.Context, marker string, now time.Time) (*models.PendingLogin, error) {
	query := `
		UPDATE pending_logins SET consumed = TRUE
		WHERE marker = $1 AND NOT consumed AND expires_at > $2
		RETURNING marker, user_id, origin, expires_at, consumed, created_at
	`
	login := &models.PendingLogin{}
	err := r.db.QueryRowContext(ctx, query, marker, now).
		Scan(&login.Marker, &login.UserID, &login.Origin, &login.ExpiresAt, &login.Consumed, &login.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return login, nil
}

// PurgeExpired deletes markers whose lifetime has passed.
func (r *PostgresRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM pending_logins
		WHERE expires_at <= $1 OR consumed
	`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
