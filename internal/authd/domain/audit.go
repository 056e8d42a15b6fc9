package domain

import "time"

// Audit event kinds. Append-only; never rename a kind that has been written.
const (
	AuditLoginSuccess     = "LOGIN_SUCCESS"
	AuditLoginFailed      = "LOGIN_FAILED"
	AuditLoginMFARequired = "LOGIN_MFA_REQUIRED"
	AuditLoginMFAFailed   = "LOGIN_MFA_FAILED"
	AuditAccountLocked    = "ACCOUNT_LOCKED"
	AuditAccountCreated   = "ACCOUNT_CREATED"
	AuditLogoutSuccess    = "LOGOUT_SUCCESS"
	AuditLogoutFailed     = "LOGOUT_FAILED"
	AuditLogoutAll        = "LOGOUT_ALL"
	AuditTokenRefreshed   = "TOKEN_REFRESHED"
	AuditTokenRefreshFail = "TOKEN_REFRESH_FAILED"
	AuditKeyRotated       = "KEY_ROTATED"
)

// AuditEvent is one security-relevant occurrence. AccountID may be empty for
// failures where the presented identifier matched no account.
type AuditEvent struct {
	ID        string // ULID, doubles as a creation-ordered sort key
	Kind      string
	AccountID string
	Username  string // identifier as presented, not normalised
	IP        string
	Detail    string
	CreatedAt time.Time
}
