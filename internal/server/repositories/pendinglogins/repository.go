package pendinglogins

import (
	"context"
	"time"

	"github.com/psharma/securenotes/internal/server/models"
)

// Repository persists the short-lived, single-use markers that bridge the
// password step and the MFA step of login.
type Repository interface {
	Create(ctx context.Context, login *models.PendingLogin) error
	// Consume atomically marks the marker consumed and returns it. A marker
	// that is unknown, expired, or already consumed yields
	// common.ErrorNotFound; it can never be consumed twice.
	Consume(ctx context.Context, marker string, now time.Time) (*models.PendingLogin, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
