package subscriptions

import (
	"context"

	"github.com/psharma/securenotes/internal/server/models"
)

// Repository persists the authoritative subscription record and the
// idempotency ledger of processed payment transactions.
type Repository interface {
	Get(ctx context.Context, userID string) (*models.Subscription, error)
	// GetForUpdate locks the row for the duration of the surrounding
	// transaction so concurrent tier changes serialize.
	GetForUpdate(ctx context.Context, userID string) (*models.Subscription, error)
	Create(ctx context.Context, sub *models.Subscription) error
	Update(ctx context.Context, sub *models.Subscription) error
	// InsertTransaction records a processed transaction reference. It
	// reports false, without error, when the reference was already present.
	InsertTransaction(ctx context.Context, txn *models.SubscriptionTransaction) (bool, error)
	GetTransaction(ctx context.Context, ref string) (*models.SubscriptionTransaction, error)
}
