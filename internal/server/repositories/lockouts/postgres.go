// Package lockouts provides a PostgreSQL-backed repository for brute-force
// lockout state.
package lockouts

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

// Get returns the state for the pair or common.ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, identityKey, origin string) (*models.LockoutState, error) {
	query := `
		SELECT identity_key, origin, failure_count, window_start, locked_until
		FROM lockout_states
		WHERE identity_key = $1 AND origin = $2
	`
	s := &models.LockoutState{}
	err := r.db.QueryRowContext(ctx, query, identityKey, origin).
		Scan(&s.IdentityKey, &s.Origin, &s.FailureCount, &s.WindowStart, &s.LockedUntil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

// RecordFailure is a single-statement upsert so that concurrent failures for
// the same pair serialize on the row and never undercount. A window that
// started before windowCutoff is restarted at count 1.
func (r *PostgresRepository) RecordFailure(ctx context.Context, identityKey, origin string, now, windowCutoff time.Time) (int, error) {
	query := `
		INSERT INTO lockout_states (identity_key, origin, failure_count, window_start)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (identity_key, origin) DO UPDATE SET
			failure_count = CASE
				WHEN lockout_states.window_start < $4 THEN 1
				ELSE lockout_states.failure_count + 1
			END,
			window_start = CASE
				WHEN lockout_states.window_start < $4 THEN $3
				ELSE lockout_states.window_start
			END
		RETURNING failure_count
	`
	var count int
	if err := r.db.QueryRowContext(ctx, query, identityKey, origin, now, windowCutoff).Scan(&count); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return count, nil
}

// Lock sets locked_until for the pair.
func (r *PostgresRepository) Lock(ctx context.Context, identityKey, origin string, until time.Time) error {
	query := `
		UPDATE lockout_states SET locked_until = $3
		WHERE identity_key = $1 AND origin = $2
	`
	if _, err := r.db.ExecContext(ctx, query, identityKey, origin, until); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Clear removes the state for the pair entirely.
func (r *PostgresRepository) Clear(ctx context.Context, identityKey, origin string) error {
	query := `
		DELETE FROM lockout_states
		WHERE identity_key = $1 AND origin = $2
	`
	if _, err := r.db.ExecContext(ctx, query, identityKey, origin); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
