package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/psharma/securenotes/internal/common"
	"github.com/psharma/securenotes/internal/logging"
	"github.com/psharma/securenotes/internal/server/models"
	"github.com/sethvargo/go-retry"
)

// PaymentConfirmation is what the payment-gateway collaborator delivers
// after verifying the gateway's cryptographic signature. The core refuses
// to act unless the collaborator attests to that verification.
type PaymentConfirmation struct {
	TransactionRef    string
	UserID            string
	Tier              models.Tier
	AmountCents       int64
	SignatureVerified bool
}

// billingCycle is the paid period granted per confirmation.
const billingCycle = 30 * 24 * time.Hour

// DefaultPlans maps each purchasable tier to its price. A confirmation whose
// amount does not match the purported tier is refused.
var DefaultPlans = map[models.Tier]int64{
	models.TierPro:        999,
	models.TierEnterprise: 2999,
}

// Synchronizer reacts to payment confirmations and drives the registry.
type Synchronizer struct {
	registry *Registry
	plans    map[models.Tier]int64
	logger   logging.Logger
	now      func() time.Time
}

// NewSynchronizer constructs a Synchronizer. A nil plans map selects
// DefaultPlans.
func NewSynchronizer(registry *Registry, plans map[models.Tier]int64, logger logging.Logger) *Synchronizer {
	if plans == nil {
		plans = DefaultPlans
	}
	return &Synchronizer{
		registry: registry,
		plans:    plans,
		logger:   logger.With("module", "subscription_sync"),
		now:      time.Now,
	}
}

// OnPaymentConfirmed applies one confirmed payment. The processed-reference
// check and the tier write are one atomic unit inside Registry.SetTier, so a
// replayed webhook cannot double-credit and a lost race cannot strand a
// paying user on FREE. Conflicting concurrent updates are retried with
// capped exponential backoff; exhaustion is escalated, never dropped.
func (s *Synchronizer) OnPaymentConfirmed(ctx context.Context, conf PaymentConfirmation) error {
	if !conf.SignatureVerified {
		s.logger.Warn(ctx, "unverified payment callback refused", "ref", conf.TransactionRef)
		return common.ErrPaymentUnverified
	}

	expected, ok := s.plans[conf.Tier]
	if !ok {
		return common.ErrUnknownPaymentPlan
	}
	if conf.AmountCents != expected {
		s.logger.Warn(ctx, "payment amount does not match plan",
			"ref", conf.TransactionRef, "tier", string(conf.Tier),
			"amount_cents", conf.AmountCents, "expected_cents", expected)
		return common.ErrUnknownPaymentPlan
	}

	start := s.now()
	end := start.Add(billingCycle)

	backoff := retry.WithMaxRetries(3, retry.NewExponential(100*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := s.registry.SetTier(ctx, SetTierParams{
			UserID:            conf.UserID,
			Tier:              conf.Tier,
			Status:            models.StatusActive,
			BillingCycleStart: &start,
			BillingCycleEnd:   &end,
			TransactionRef:    conf.TransactionRef,
			AmountCents:       conf.AmountCents,
			Actor:             "payment",
		})
		if errors.Is(err, common.ErrConflictingUpdate) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		// A dropped tier update is a billing-correctness bug; surface it
		// loudly for the operator.
		s.logger.Error(ctx, "tier sync failed after retries, operator attention required",
			"ref", conf.TransactionRef, "user_id", conf.UserID, "error", err.Error())
		return fmt.Errorf("syncing tier for %s: %w", conf.TransactionRef, err)
	}

	return nil
}
