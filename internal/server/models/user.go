package models

import "time"

// User is an identity together with its credential record and the
// denormalized fast-path tier flag. The authoritative tier lives in
// Subscription; SubscriptionTier here is a cache updated only inside the
// same transaction as the authoritative write.
type User struct {
	ID                string
	Username          string
	PasswordHash      string
	PasswordChangedAt time.Time
	MFASecret         string // empty when MFA is not enrolled
	MFAEnabled        bool
	IsStaff           bool
	SubscriptionTier  Tier
	CreatedAt         time.Time
}
