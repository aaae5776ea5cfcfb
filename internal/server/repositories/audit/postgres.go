// Package audit provides a PostgreSQL-backed, append-only repository for the
// audit trail.
package audit

import (
	"context"
	"database/sql"
	"fmt"

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

// Append inserts one entry. The user id may be empty for events where the
// principal is unknown.
func (r *PostgresRepository) Append(ctx context.Context, entry *models.AuditEntry) error {
	query := `
		INSERT INTO audit_log (id, user_id, action, origin, detail, created_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.UserID, entry.Action, entry.Origin, entry.Detail, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListRecent returns up to limit entries matching the filter, newest first.
func (r *PostgresRepository) ListRecent(ctx context.Context, filter Filter, limit int) ([]*models.AuditEntry, error) {
	query := `
		SELECT id, COALESCE(user_id::text, ''), action, origin, detail, created_at
		FROM audit_log
		WHERE ($1 = '' OR user_id::text = $1)
		  AND ($2 = '' OR action = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, filter.UserID, string(filter.Action), limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]*models.AuditEntry, error) {
	var entries []*models.AuditEntry
	for rows.Next() {
		e := &models.AuditEntry{}
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.Origin, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return entries, nil
}
