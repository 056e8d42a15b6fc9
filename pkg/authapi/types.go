package authapi

import (
	"github.com/oakmont/authd/pkg/jwtx"
)

// ============================================================================
// Error Response Types
// ============================================================================

// ErrorResponse is the JSON error envelope returned by every endpoint.
type ErrorResponse struct {
	// Error is the machine-readable error code (e.g., "invalid_credentials")
	Error string `json:"error"`

	// ErrorDescription is a human-readable description of the error
	ErrorDescription string `json:"error_description"`
}

// ============================================================================
// Authentication Types
// ============================================================================

// LoginRequest carries one credential attempt.
type LoginRequest struct {
	// Username is the login identifier; an email address is also accepted
	Username string `json:"username"`

	// Password is the plaintext password
	Password string `json:"password"`

	// Device is an optional free-form device label for the session
	Device string `json:"device,omitempty"`
}

// MFACompleteRequest exchanges an MFA challenge plus TOTP code for tokens.
type MFACompleteRequest struct {
	// MFAToken is the opaque challenge token from the login response
	MFAToken string `json:"mfa_token"`

	// Code is the 6-digit TOTP code
	Code string `json:"code"`

	// Device is an optional free-form device label for the session
	Device string `json:"device,omitempty"`
}

// RefreshRequest rotates a refresh token for a new token pair.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
	Device       string `json:"device,omitempty"`
}

// LogoutRequest revokes the session behind a refresh token.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse is returned from login, MFA completion and refresh.
type TokenResponse struct {
	// AccessToken is the JWT access token used to authenticate API requests
	AccessToken string `json:"access_token"`

	// RefreshToken is the JWT refresh token; single-use, rotated on refresh
	RefreshToken string `json:"refresh_token"`

	// TokenType is always "Bearer"
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token
	ExpiresIn int `json:"expires_in"`

	// RefreshExpiresIn is the lifetime in seconds of the refresh token
	RefreshExpiresIn int `json:"refresh_expires_in"`
}

// LogoutAllResponse reports how many sessions were terminated.
type LogoutAllResponse struct {
	SessionsRevoked int64 `json:"sessions_revoked"`
}

// ============================================================================
// Verification Types
// ============================================================================

// VerifyRequest checks an access token.
type VerifyRequest struct {
	AccessToken string `json:"access_token"`
}

// VerifyResponse reports whether an access token is good and what it carries.
// When Valid is false only Error is populated.
type VerifyResponse struct {
	Valid     bool     `json:"valid"`
	AccountID string   `json:"account_id,omitempty"`
	Username  string   `json:"username,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	IssuedAt  int64    `json:"iat,omitempty"`
	ExpiresAt int64    `json:"exp,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// ============================================================================
// Registration Types
// ============================================================================

// RegisterRequest creates a new account.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterResponse contains the created account's identifiers.
type RegisterResponse struct {
	AccountID string   `json:"account_id"`
	Username  string   `json:"username"`
	Roles     []string `json:"roles"`
}

// ============================================================================
// Session Types
// ============================================================================

// SessionInfo describes one active session of the authenticated account.
type SessionInfo struct {
	// ID is the session identifier (the refresh token's jti)
	ID string `json:"id"`

	// Device is the free-form device label supplied at login
	Device string `json:"device,omitempty"`

	// IP is the remote address observed at login
	IP string `json:"ip,omitempty"`

	// CreatedAt is an RFC3339 timestamp
	CreatedAt string `json:"created_at"`

	// ExpiresAt is an RFC3339 timestamp
	ExpiresAt string `json:"expires_at"`
}

// ListSessionsResponse contains the account's active sessions, newest first.
type ListSessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

// ============================================================================
// Signing Key Types
// ============================================================================

// SigningKeyInfo represents a JWT signing key with its metadata.
type SigningKeyInfo struct {
	Kid       string  `json:"kid"`
	Algorithm string  `json:"algorithm"`            // RS256 or EdDSA
	CreatedAt string  `json:"created_at"`           // RFC3339 timestamp
	RetiredAt *string `json:"retired_at,omitempty"` // RFC3339 timestamp (null if active)
	ExpiresAt string  `json:"expires_at"`           // RFC3339 timestamp
}

// RotateKeyResponse represents the result of a key rotation operation.
type RotateKeyResponse struct {
	NewKid string `json:"new_kid"`
}

// ListKeysResponse contains every known signing key, active and retired.
type ListKeysResponse struct {
	Keys []SigningKeyInfo `json:"keys"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse is returned by /livez and /readyz; readyz includes Checks.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports the status of critical service dependencies.
type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer"`
}

// ============================================================================
// JWKS Types
// ============================================================================

// JWKSResponse contains the JSON Web Key Set used to verify token signatures.
type JWKSResponse jwtx.JWKS
