package models

import "time"

// AuditAction classifies a security-relevant event.
type AuditAction string

const (
	ActionRegister       AuditAction = "REGISTER"
	ActionLogin          AuditAction = "LOGIN"
	ActionLogout         AuditAction = "LOGOUT"
	ActionFailedLogin    AuditAction = "FAILED_LOGIN"
	ActionAccessDenied   AuditAction = "ACCESS_DENIED"
	ActionPasswordChange AuditAction = "PASSWORD_CHANGE"
	ActionTierChange     AuditAction = "TIER_CHANGE"
	ActionMFAEnabled     AuditAction = "MFA_ENABLED"
	ActionMFADisabled    AuditAction = "MFA_DISABLED"
)

// AuditEntry is one immutable row of the audit trail. Entries are only ever
// appended and read; there is no update or delete path.
type AuditEntry struct {
	ID        string
	UserID    string // empty when the principal is unknown (e.g. failed login)
	Action    AuditAction
	Origin    string
	Detail    string
	CreatedAt time.Time
}
