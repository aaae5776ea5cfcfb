// Package subscriptions provides a PostgreSQL-backed repository for the
// authoritative subscription record and the processed-transaction ledger.
package subscriptions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

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

const subscriptionColumns = `user_id, tier, status, billing_cycle_start, billing_cycle_end, updated_at`

func (r *PostgresRepository) get(ctx context.Context, userID string, forUpdate bool) (*models.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	sub := &models.Subscription{}
	err := r.db.QueryRowContext(ctx, query, userID).
		Scan(&sub.UserID, &sub.Tier, &sub.Status, &sub.BillingCycleStart, &sub.BillingCycleEnd, &sub.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return sub, nil
}

// Get returns the subscription for userID or common.ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, userID string) (*models.Subscription, error) {
	return r.get(ctx, userID, false)
}

// GetForUpdate returns the subscription with the row locked.
func (r *PostgresRepository) GetForUpdate(ctx context.Context, userID string) (*models.Subscription, error) {
	return r.get(ctx, userID, true)
}

// Create inserts the initial subscription row for a user.
func (r *PostgresRepository) Create(ctx context.Context, sub *models.Subscription) error {
	query := `
		INSERT INTO subscriptions (user_id, tier, status, billing_cycle_start, billing_cycle_end, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		sub.UserID, sub.Tier, sub.Status, sub.BillingCycleStart, sub.BillingCycleEnd, sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Update rewrites the authoritative record.
func (r *PostgresRepository) Update(ctx context.Context, sub *models.Subscription) error {
	query := `
		UPDATE subscriptions
		SET tier = $2, status = $3, billing_cycle_start = $4, billing_cycle_end = $5, updated_at = $6
		WHERE user_id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		sub.UserID, sub.Tier, sub.Status, sub.BillingCycleStart, sub.BillingCycleEnd, sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// InsertTransaction appends to the idempotency ledger. An already-present
// reference is not an error; it reports inserted=false so the caller can
// treat the whole change as a replay and no-op.
func (r *PostgresRepository) InsertTransaction(ctx context.Context, txn *models.SubscriptionTransaction) (bool, error) {
	query := `
		INSERT INTO subscription_transactions (transaction_ref, user_id, tier, amount_cents, processed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (transaction_ref) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query,
		txn.Ref, txn.UserID, txn.Tier, txn.AmountCents, txn.ProcessedAt)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

// GetTransaction returns the ledger row for ref or common.ErrorNotFound.
func (r *PostgresRepository) GetTransaction(ctx context.Context, ref string) (*models.SubscriptionTransaction, error) {
	query := `
		SELECT transaction_ref, user_id, tier, amount_cents, processed_at
		FROM subscription_transactions
		WHERE transaction_ref = $1
	`
	txn := &models.SubscriptionTransaction{}
	err := r.db.QueryRowContext(ctx, query, ref).
		Scan(&txn.Ref, &txn.UserID, &txn.Tier, &txn.AmountCents, &txn.ProcessedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return txn, nil
}
