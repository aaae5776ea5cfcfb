// Package subscription keeps the authoritative subscription record and the
// fast-path tier flag consistent. SetTier is the single atomic entry point
// for every tier change; administrative overrides and payment confirmations
// both go through it.
package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/psharma/securenotes/internal/common"
	"github.com/psharma/securenotes/internal/dbx"
	"github.com/psharma/securenotes/internal/logging"
	"github.com/psharma/securenotes/internal/server/audit"
	"github.com/psharma/securenotes/internal/server/models"
	"github.com/psharma/securenotes/internal/server/repositories/repomanager"
)

// SetTierParams describes one tier change.
type SetTierParams struct {
	UserID            string
	Tier              models.Tier
	Status            models.SubscriptionStatus
	BillingCycleStart *time.Time
	BillingCycleEnd   *time.Time
	// TransactionRef, when set, makes the change idempotent: a replayed
	// reference is a successful no-op.
	TransactionRef string
	AmountCents    int64
	// Actor identifies who triggered the change, e.g. "payment" or
	// "admin:<id>". Recorded in the audit trail.
	Actor string
}

// Registry owns all writes to the subscription state.
type Registry struct {
	db       *sql.DB
	repos    repomanager.RepositoryManager
	recorder *audit.Recorder
	logger   logging.Logger
	now      func() time.Time
}

// NewRegistry constructs a Registry.
func NewRegistry(db *sql.DB, repos repomanager.RepositoryManager, recorder *audit.Recorder, logger logging.Logger) *Registry {
	return &Registry{
		db:       db,
		repos:    repos,
		recorder: recorder,
		logger:   logger.With("module", "subscription"),
		now:      time.Now,
	}
}

// Get returns the authoritative record for userID.
func (r *Registry) Get(ctx context.Context, userID string) (*models.Subscription, error) {
	return r.repos.Subscriptions(r.db).Get(ctx, userID)
}

// Transaction returns one entry from the processed-payment ledger, for
// operator reconciliation against gateway statements.
func (r *Registry) Transaction(ctx context.Context, ref string) (*models.SubscriptionTransaction, error) {
	return r.repos.Subscriptions(r.db).GetTransaction(ctx, ref)
}

// SetTier applies one tier change. The idempotency insert, the authoritative
// row update, the fast-path flag update, and the TIER_CHANGE audit entry
// commit as a single transaction with the subscription row locked, so no
// reader can observe the flag and the record diverged. Concurrent changes
// that the database refuses to serialize surface as
// common.ErrConflictingUpdate for the caller to retry.
func (r *Registry) SetTier(ctx context.Context, p SetTierParams) error {
	if !p.Tier.Valid() {
		return fmt.Errorf("invalid tier %q", p.Tier)
	}
	if !p.Status.Valid() {
		return fmt.Errorf("invalid status %q", p.Status)
	}

	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if p.TransactionRef != "" {
			inserted, err := r.repos.Subscriptions(tx).InsertTransaction(ctx, &models.SubscriptionTransaction{
				Ref:         p.TransactionRef,
				UserID:      p.UserID,
				Tier:        p.Tier,
				AmountCents: p.AmountCents,
				ProcessedAt: r.now(),
			})
			if err != nil {
				return err
			}
			if !inserted {
				r.logger.Info(ctx, "transaction replayed, no-op", "ref", p.TransactionRef, "user_id", p.UserID)
				return errAlreadyProcessed
			}
		}

		sub, err := r.repos.Subscriptions(tx).GetForUpdate(ctx, p.UserID)
		if err != nil {
			if !errors.Is(err, common.ErrorNotFound) {
				return err
			}
			sub = &models.Subscription{
				UserID: p.UserID,
				Tier:   models.TierFree,
				Status: models.StatusInactive,
			}
			sub.UpdatedAt = r.now()
			if err := r.repos.Subscriptions(tx).Create(ctx, sub); err != nil {
				return err
			}
		}
		before := sub.Tier

		sub.Tier = p.Tier
		sub.Status = p.Status
		sub.BillingCycleStart = p.BillingCycleStart
		sub.BillingCycleEnd = p.BillingCycleEnd
		sub.UpdatedAt = r.now()
		if err := r.repos.Subscriptions(tx).Update(ctx, sub); err != nil {
			return err
		}

		if err := r.repos.Users(tx).SetFastPathTier(ctx, p.UserID, p.Tier); err != nil {
			return err
		}

		detail := fmt.Sprintf("tier %s -> %s", before, p.Tier)
		if p.TransactionRef != "" {
			detail += " (ref " + p.TransactionRef + ")"
		}
		return r.recorder.Record(ctx, tx, p.UserID, models.ActionTierChange, p.Actor, detail)
	})

	if errors.Is(err, errAlreadyProcessed) {
		return nil
	}
	if isSerializationFailure(err) {
		return common.ErrConflictingUpdate
	}
	if err != nil {
		return fmt.Errorf("setting tier: %w", err)
	}

	r.logger.Info(ctx, "tier updated", "user_id", p.UserID, "tier", string(p.Tier), "actor", p.Actor)
	return nil
}

// errAlreadyProcessed aborts the transaction (rolling back the no-op) while
// signalling success to the caller.
var errAlreadyProcessed = errors.New("transaction already processed")

// isSerializationFailure matches the PostgreSQL serialization and deadlock
// SQLSTATEs that mean "retry the whole transaction".
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
