package models

import "time"

// PendingLogin is the server-held marker bridging the password step and the
// MFA step of login. Markers are short-lived and single-use.
type PendingLogin struct {
	Marker    string
	UserID    string
	Origin    string
	ExpiresAt time.Time
	Consumed  bool
	CreatedAt time.Time
}
