package models

import "time"

// Subscription is the authoritative tier/status/billing-cycle record for a
// single user.
type Subscription struct {
	UserID            string
	Tier              Tier
	Status            SubscriptionStatus
	BillingCycleStart *time.Time
	BillingCycleEnd   *time.Time
	UpdatedAt         time.Time
}

// SubscriptionTransaction is one processed payment reference. Its primary
// key (Ref) is what makes tier changes idempotent under webhook replay.
type SubscriptionTransaction struct {
	Ref         string
	UserID      string
	Tier        Tier
	AmountCents int64
	ProcessedAt time.Time
}
