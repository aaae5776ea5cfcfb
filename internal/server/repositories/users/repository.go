package users

import (
	"context"
	"time"

	"github.com/psharma/securenotes/internal/server/models"
)

// Repository persists identities together with their credential record and
// the fast-path tier flag.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdatePassword(ctx context.Context, userID, hash string, changedAt time.Time) error
	SetMFASecret(ctx context.Context, userID, secret string) error
	SetMFAEnabled(ctx context.Context, userID string, enabled bool) error
	ClearMFA(ctx context.Context, userID string) error
	SetFastPathTier(ctx context.Context, userID string, tier models.Tier) error
}
