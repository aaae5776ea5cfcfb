// Package lockout implements brute-force mitigation keyed by
// (identity key, origin). The tracker must be consulted before any
// credential verification so a locked pair is denied without burning
// hashing work and without revealing whether the account exists.
package lockout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/psharma/securenotes/internal/common"
	"github.com/psharma/securenotes/internal/logging"
	"github.com/psharma/securenotes/internal/server/config"
	"github.com/psharma/securenotes/internal/server/repositories/repomanager"
)

// Decision is the outcome of a lockout check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Tracker moves each (identity key, origin) pair through
// CLEAR → WARNING → LOCKED and back.
type Tracker struct {
	db        *sql.DB
	repos     repomanager.RepositoryManager
	threshold int
	window    time.Duration
	lockFor   time.Duration
	logger    logging.Logger
	now       func() time.Time
}

// NewTracker constructs a Tracker from server config.
func NewTracker(db *sql.DB, repos repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *Tracker {
	return &Tracker{
		db:        db,
		repos:     repos,
		threshold: cfg.LockoutThreshold,
		window:    cfg.LockoutWindow,
		lockFor:   cfg.LockoutDuration,
		logger:    logger.With("module", "lockout"),
		now:       time.Now,
	}
}

// Check reports whether an authentication attempt may proceed. A lock whose
// window has passed resets the counter on the spot. Storage errors fail
// closed: the attempt is denied.
func (t *Tracker) Check(ctx context.Context, identityKey, origin string) (Decision, error) {
	now := t.now()

	state, err := t.repos.Lockouts(t.db).Get(ctx, identityKey, origin)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return Decision{Allowed: true}, nil
		}
		return Decision{}, fmt.Errorf("lockout check: %w", err)
	}

	if state.LockedUntil != nil {
		if now.Before(*state.LockedUntil) {
			return Decision{RetryAfter: state.LockedUntil.Sub(now)}, nil
		}
		// Lock period passed: next check transitions back to CLEAR.
		if err := t.repos.Lockouts(t.db).Clear(ctx, identityKey, origin); err != nil {
			return Decision{}, fmt.Errorf("lockout reset: %w", err)
		}
		return Decision{Allowed: true}, nil
	}

	return Decision{Allowed: true}, nil
}

// Fail records one failed attempt and locks the pair once the counter
// reaches the threshold. The increment happens in a single statement so
// concurrent failures never undercount.
func (t *Tracker) Fail(ctx context.Context, identityKey, origin string) error {
	now := t.now()

	count, err := t.repos.Lockouts(t.db).RecordFailure(ctx, identityKey, origin, now, now.Add(-t.window))
	if err != nil {
		return fmt.Errorf("recording failure: %w", err)
	}

	if count >= t.threshold {
		until := now.Add(t.lockFor)
		if err := t.repos.Lockouts(t.db).Lock(ctx, identityKey, origin, until); err != nil {
			return fmt.Errorf("locking: %w", err)
		}
		t.logger.Warn(ctx, "identity locked out", "identity_key", identityKey, "origin", origin, "failures", count, "until", until)
	}
	return nil
}

// Clear resets the pair to CLEAR. Called on every successful authentication.
func (t *Tracker) Clear(ctx context.Context, identityKey, origin string) error {
	if err := t.repos.Lockouts(t.db).Clear(ctx, identityKey, origin); err != nil {
		return fmt.Errorf("clearing lockout: %w", err)
	}
	return nil
}
