package models

// Tier is a principal's subscription level. Ordering is FREE < PRO < ENTERPRISE.
type Tier string

const (
	TierFree       Tier = "FREE"
	TierPro        Tier = "PRO"
	TierEnterprise Tier = "ENTERPRISE"
)

// Rank returns the position of the tier in the FREE < PRO < ENTERPRISE order.
// Unknown tiers rank below FREE so a corrupted value never grants access.
func (t Tier) Rank() int {
	switch t {
	case TierFree:
		return 1
	case TierPro:
		return 2
	case TierEnterprise:
		return 3
	default:
		return 0
	}
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	return t == TierFree || t == TierPro || t == TierEnterprise
}

// SubscriptionStatus is the lifecycle state of a subscription record.
type SubscriptionStatus string

const (
	StatusActive    SubscriptionStatus = "ACTIVE"
	StatusInactive  SubscriptionStatus = "INACTIVE"
	StatusCancelled SubscriptionStatus = "CANCELLED"
	StatusSuspended SubscriptionStatus = "SUSPENDED"
)

// Valid reports whether s is one of the known statuses.
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusCancelled, StatusSuspended:
		return true
	default:
		return false
	}
}
