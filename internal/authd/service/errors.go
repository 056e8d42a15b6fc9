package service

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors returned by the services. Handlers map these to HTTP
// status codes; anything else is treated as an internal error.
var (
	// ErrInvalidCredentials covers unknown identifier AND wrong password,
	// deliberately indistinguishable so callers cannot probe which
	// accounts exist.
	ErrInvalidCredentials = errors.New("service: invalid credentials")

	// ErrInvalidToken covers expired, malformed, wrong-use and
	// unknown-signature tokens.
	ErrInvalidToken = errors.New("service: invalid token")

	// ErrSessionInvalid means the token verified but its session has been
	// revoked or superseded.
	ErrSessionInvalid = errors.New("service: session revoked or expired")

	// ErrMFARequired signals that a password check passed but the account
	// needs a TOTP code; the caller receives an MFA challenge instead of
	// tokens.
	ErrMFARequired = errors.New("service: mfa required")

	// ErrMFAChallengeInvalid covers unknown, expired and exhausted MFA
	// challenges.
	ErrMFAChallengeInvalid = errors.New("service: mfa challenge invalid")

	// ErrConflict means a username or email is already taken.
	ErrConflict = errors.New("service: already exists")

	// ErrInvalidInput is returned for malformed registration fields.
	ErrInvalidInput = errors.New("service: invalid input")

	// ErrKeyUnavailable means no signing key could be obtained.
	ErrKeyUnavailable = errors.New("service: signing key unavailable")
)

// AccountLockedError is returned when an account is under lockout. It is only
// revealed after a full credential attempt, so probing a locked account still
// costs a password guess.
type AccountLockedError struct {
	Until time.Time
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("service: account locked until %s", e.Until.UTC().Format(time.RFC3339))
}

// RetryAfter returns the remaining lockout duration at now, floored at zero.
func (e *AccountLockedError) RetryAfter(now time.Time) time.Duration {
	if d := e.Until.Sub(now); d > 0 {
		return d
	}
	return 0
}
