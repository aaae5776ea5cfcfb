package models

import "time"

// LockoutState tracks failed authentication attempts for one
// (identity key, origin) pair. The identity key is the submitted username,
// not a user id, so attempts against unknown accounts accrue state too.
type LockoutState struct {
	IdentityKey  string
	Origin       string
	FailureCount int
	WindowStart  time.Time
	LockedUntil  *time.Time
}
