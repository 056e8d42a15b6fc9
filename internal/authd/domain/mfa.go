package domain

import "time"

// MFAChallenge is the short-lived handle issued after a correct password on
// an MFA-enabled account. The client exchanges it together with a TOTP code
// for a token pair.
type MFAChallenge struct {
	Token     string // opaque 256-bit token, also the lookup key
	AccountID string
	Attempts  int
	CreatedAt time.Time
	ExpiresAt time.Time
}

// MFA challenge limits.
const (
	MFAChallengeTTL         = 5 * time.Minute
	MFAChallengeMaxAttempts = 5
)
