// Package users provides a PostgreSQL-backed repository for identities and
// their credential records.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/psharma/securenotes/internal/common"
	"github.com/psharma/securenotes/internal/dbx"
	"github.com/psharma/securenotes/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, username, password_hash, password_changed_at,
	COALESCE(mfa_secret, ''), mfa_enabled, is_staff, subscription_tier, created_at`

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.PasswordChangedAt,
		&user.MFASecret, &user.MFAEnabled, &user.IsStaff, &user.SubscriptionTier, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

// Create inserts a new user row and returns it with the generated id and
// creation timestamp. Duplicate usernames yield common.ErrUsernameTaken.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (username, password_hash, password_changed_at, subscription_tier)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		user.Username, user.PasswordHash, user.PasswordChangedAt, user.SubscriptionTier).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, common.ErrUsernameTaken
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

// isUniqueViolation matches the PostgreSQL unique_violation SQLSTATE.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// GetByUsername returns the user with the given username or common.ErrorNotFound.
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, username))
}

// GetByID returns the user with the given id or common.ErrorNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// UpdatePassword replaces the current hash and advances password_changed_at.
func (r *PostgresRepository) UpdatePassword(ctx context.Context, userID, hash string, changedAt time.Time) error {
	query := `
		UPDATE users SET password_hash = $2, password_changed_at = $3
		WHERE id = $1
	`
	return r.exec(ctx, query, userID, hash, changedAt)
}

// SetMFASecret stores a newly enrolled TOTP secret. Enrollment alone does not
// enable MFA; that happens on the first successful confirmation.
func (r *PostgresRepository) SetMFASecret(ctx context.Context, userID, secret string) error {
	query := `UPDATE users SET mfa_secret = $2, mfa_enabled = FALSE WHERE id = $1`
	return r.exec(ctx, query, userID, secret)
}

// SetMFAEnabled flips the mfa_enabled flag.
func (r *PostgresRepository) SetMFAEnabled(ctx context.Context, userID string, enabled bool) error {
	query := `UPDATE users SET mfa_enabled = $2 WHERE id = $1`
	return r.exec(ctx, query, userID, enabled)
}

// ClearMFA removes the secret and disables MFA.
func (r *PostgresRepository) ClearMFA(ctx context.Context, userID string) error {
	query := `UPDATE users SET mfa_secret = NULL, mfa_enabled = FALSE WHERE id = $1`
	return r.exec(ctx, query, userID)
}

// SetFastPathTier updates the denormalized tier flag. Callers must invoke
// this inside the same transaction as the authoritative subscription write.
func (r *PostgresRepository) SetFastPathTier(ctx context.Context, userID string, tier models.Tier) error {
	query := `UPDATE users SET subscription_tier = $2 WHERE id = $1`
	return r.exec(ctx, query, userID, tier)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
