package lockouts

import (
	"context"
	"time"

	"github.com/psharma/securenotes/internal/server/models"
)

// Repository persists failed-attempt counters keyed by (identity key, origin).
type Repository interface {
	Get(ctx context.Context, identityKey, origin string) (*models.LockoutState, error)
	// RecordFailure atomically increments the failure counter, starting a
	// fresh window when the previous one began before windowCutoff. It
	// returns the counter value after the increment.
	RecordFailure(ctx context.Context, identityKey, origin string, now, windowCutoff time.Time) (int, error)
	Lock(ctx context.Context, identityKey, origin string, until time.Time) error
	Clear(ctx context.Context, identityKey, origin string) error
}
