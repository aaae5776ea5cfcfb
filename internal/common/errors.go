// Package common defines shared sentinel errors used across the security
// core. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Authentication errors. The transport layer collapses these into one
	// generic response; the distinction exists only for the audit trail.
	ErrAccountLocked = errors.New("account locked")
	ErrMfaInvalid    = errors.New("invalid mfa code")
	ErrMfaNotEnabled = errors.New("mfa not enabled")

	// Credential lifecycle errors.
	ErrReusedPassword   = errors.New("password reused")
	ErrWrongOldPassword = errors.New("wrong old password")
	ErrPasswordExpired  = errors.New("password expired")

	// Session errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Authorization errors.
	ErrNotAuthorized = errors.New("not authorized")

	// Subscription errors.
	ErrConflictingUpdate  = errors.New("conflicting update")
	ErrPaymentUnverified  = errors.New("payment callback not verified")
	ErrUnknownPaymentPlan = errors.New("unknown payment plan")

	// Registration errors.
	ErrUsernameTaken = errors.New("username already taken")
)
