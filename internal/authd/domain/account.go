package domain

import "time"

type Account struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string   // argon2 encoded
	Roles        []string // e.g. ["user", "admin"]

	MFAEnabled bool
	MFASecret  *string // TOTP secret (nullable, base32 encoded)

	// Lockout state. Locked accounts are unlocked lazily on the next
	// attempt after LockoutUntil passes; FailedAttempts is only reset by a
	// successful login.
	FailedAttempts int
	Locked         bool
	LockoutUntil   *time.Time
	LastAttemptAt  *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// LockoutExpired reports whether a lock has run its course. False for
// accounts that were never locked.
func (a *Account) LockoutExpired(now time.Time) bool {
	return a.Locked && a.LockoutUntil != nil && !now.Before(*a.LockoutUntil)
}
