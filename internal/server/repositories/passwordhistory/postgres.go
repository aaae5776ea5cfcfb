// Package passwordhistory provides a PostgreSQL-backed repository for prior
// password hashes, used to reject password reuse.
package passwordhistory

import (
	"context"
	"fmt"

	"github.com/psharma/securenotes/internal/dbx"
)

// PostgresRepository implements Repository over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Add appends a hash to the user's history.
func (r *PostgresRepository) Add(ctx context.Context, userID, hash string) error {
	query := `
		INSERT INTO password_history (user_id, password_hash)
		VALUES ($1, $2)
	`
	if _, err := r.db.ExecContext(ctx, query, userID, hash); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListRecent returns up to n most recent hashes, newest first.
func (r *PostgresRepository) ListRecent(ctx context.Context, userID string, n int) ([]string, error) {
	query := `
		SELECT password_hash FROM password_history
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, userID, n)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		hashes = append(hashes, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return hashes, nil
}

// Prune deletes everything older than the keep most recent entries.
func (r *PostgresRepository) Prune(ctx context.Context, userID string, keep int) error {
	query := `
		DELETE FROM password_history
		WHERE user_id = $1 AND id NOT IN (
			SELECT id FROM password_history
			WHERE user_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		)
	`
	if _, err := r.db.ExecContext(ctx, query, userID, keep); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
