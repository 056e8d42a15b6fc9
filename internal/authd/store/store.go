package store

import (
	"context"
	"errors"
	"time"

	"github.com/oakmont/authd/internal/authd/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite, redis
// for sessions) implement this. It exposes sub-repositories to keep concerns
// tidy and testable, and to actively stop people from accidentally doing
// transactions within transactions.
type Store interface {
	Accounts() Accounts
	Sessions() Sessions
	SigningKeys() SigningKeys
	AuditEvents() AuditEvents
	MFAChallenges() MFAChallenges

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// Use it for multi-step operations that must be atomic (e.g., refresh rotation).
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	// This is the recommended way to handle transactions as it automatically
	// handles commit/rollback logic.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Accounts interface {
	// GetAccountByID returns an account by id.
	GetAccountByID(ctx context.Context, id string) (domain.Account, error)

	// GetAccountByLogin resolves a presented identifier, which may be a
	// username or an email address.
	GetAccountByLogin(ctx context.Context, login string) (domain.Account, error)

	// CreateAccount inserts a new account (id is provided by app via ULID).
	// Returns ErrAlreadyExists when username or email is taken.
	CreateAccount(ctx context.Context, a domain.Account) error

	// UpdateLockoutState persists the failure counter and lock fields in a
	// single write, bumping updated_at.
	UpdateLockoutState(ctx context.Context, accountID string, failedAttempts int, locked bool, lockoutUntil, lastAttemptAt *time.Time) error

	// UpdatePasswordHash sets the password_hash (argon2) and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, accountID string, newHash string) error

	// UpdateMFASecret sets the TOTP secret and enables MFA for an account.
	UpdateMFASecret(ctx context.Context, accountID string, secret string) error

	// DisableMFA clears the MFA secret and flag.
	DisableMFA(ctx context.Context, accountID string) error

	// DeleteAccount removes the account; sessions are cleaned up separately
	// since they may live in a different backend.
	DeleteAccount(ctx context.Context, accountID string) error

	// IsEmpty returns true if there are no accounts.
	IsEmpty(ctx context.Context) (bool, error)
}

type Sessions interface {
	// CreateSession stores a new session keyed by the refresh token jti.
	CreateSession(ctx context.Context, s domain.Session) error

	// GetSessionByJTI returns the session for a refresh token jti.
	GetSessionByJTI(ctx context.Context, jti string) (domain.Session, error)

	// RevokeSession removes the session. Revoking an unknown or already
	// revoked jti is not an error.
	RevokeSession(ctx context.Context, jti string) error

	// RevokeAllAccountSessions removes every session for an account and
	// reports how many were removed.
	RevokeAllAccountSessions(ctx context.Context, accountID string) (int64, error)

	// ListAccountSessions returns the account's live sessions, newest first.
	ListAccountSessions(ctx context.Context, accountID string) ([]domain.Session, error)

	// DeleteExpiredSessions is housekeeping; returns the number removed.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

type SigningKeys interface {
	// CreateSigningKey stores a new signing key (id is ULID).
	CreateSigningKey(ctx context.Context, k domain.SigningKey) error

	// GetSigningKeyByKid fetches a key by its JWKS kid.
	GetSigningKeyByKid(ctx context.Context, kid string) (domain.SigningKey, error)

	// GetActiveSigningKey returns the single unretired key, or ErrNotFound.
	GetActiveSigningKey(ctx context.Context) (domain.SigningKey, error)

	// ListSigningKeys returns all keys including retired ones, newest first.
	ListSigningKeys(ctx context.Context) ([]domain.SigningKey, error)

	// RetireSigningKey stamps retired_at and sets the verification expiry.
	RetireSigningKey(ctx context.Context, kid string, retiredAt, expiresAt time.Time) error

	// DeleteExpiredSigningKeys removes keys past their expires_at.
	DeleteExpiredSigningKeys(ctx context.Context, now time.Time) (int64, error)
}

type AuditEvents interface {
	// AppendAuditEvent writes one event. Append-only; events are never
	// updated.
	AppendAuditEvent(ctx context.Context, e domain.AuditEvent) error

	// ListAccountAuditEvents returns the most recent events for an account,
	// newest first, capped at limit.
	ListAccountAuditEvents(ctx context.Context, accountID string, limit int) ([]domain.AuditEvent, error)

	// DeleteAuditEventsBefore purges events older than the cutoff.
	DeleteAuditEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type MFAChallenges interface {
	// CreateMFAChallenge stores a new challenge keyed by its opaque token.
	CreateMFAChallenge(ctx context.Context, c domain.MFAChallenge) error

	// GetMFAChallenge retrieves a challenge by token (expired challenges may
	// still be returned; the caller checks ExpiresAt).
	GetMFAChallenge(ctx context.Context, token string) (domain.MFAChallenge, error)

	// IncrementMFAChallengeAttempts bumps the failed attempt counter and
	// returns the updated challenge.
	IncrementMFAChallengeAttempts(ctx context.Context, token string) (domain.MFAChallenge, error)

	// DeleteMFAChallenge removes a challenge once consumed or exhausted.
	DeleteMFAChallenge(ctx context.Context, token string) error

	// DeleteExpiredMFAChallenges is housekeeping.
	DeleteExpiredMFAChallenges(ctx context.Context, now time.Time) (int64, error)
}
