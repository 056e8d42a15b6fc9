package service

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/oakmont/authd/internal/authd/domain"
	"github.com/oakmont/authd/internal/authd/store"
)

// Lockout defaults.
const (
	DefaultLockoutThreshold = 5
	DefaultLockoutDuration  = 30 * time.Minute

	lockoutShards = 64
)

// Decision is the outcome of recording one credential attempt.
type Decision struct {
	// Allow is true when the attempt succeeded and tokens may be issued.
	Allow bool
	// Locked is true when the account is under lockout after this attempt.
	Locked bool
	// JustLocked is true when this very attempt crossed the threshold.
	JustLocked bool
	// Until is the lockout expiry, valid when Locked.
	Until time.Time
}

// LockoutService implements progressive account lockout. Locks expire lazily:
// nothing unlocks an account until its next attempt, and the stale failure
// counter survives the unlock so only a successful login resets it.
type LockoutService struct {
	Store     store.Store
	Threshold int           // failures before locking; 0 means default
	Duration  time.Duration // lock length; 0 means default

	// Per-account striped locks so concurrent attempts against one
	// account serialize without a global bottleneck.
	shards [lockoutShards]sync.Mutex
}

func (l *LockoutService) threshold() int {
	if l.Threshold > 0 {
		return l.Threshold
	}
	return DefaultLockoutThreshold
}

func (l *LockoutService) duration() time.Duration {
	if l.Duration > 0 {
		return l.Duration
	}
	return DefaultLockoutDuration
}

func (l *LockoutService) shard(accountID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(accountID))
	return &l.shards[h.Sum32()%lockoutShards]
}

// IsLocked is the advisory pre-check: true iff the account is locked and the
// window has not yet elapsed. An elapsed window reads as unlocked without
// mutating anything; the stored state is corrected on the next attempt.
func (l *LockoutService) IsLocked(acct domain.Account, now time.Time) (bool, time.Time) {
	if acct.Locked && acct.LockoutUntil != nil && now.Before(*acct.LockoutUntil) {
		return true, *acct.LockoutUntil
	}
	return false, time.Time{}
}

// RecordAttempt folds one password-check result into the account's lockout
// state and persists the new state. The account is re-read under the
// per-account lock so concurrent attempts observe each other's counters.
func (l *LockoutService) RecordAttempt(ctx context.Context, accountID string, passwordOK bool, now time.Time) (Decision, error) {
	mu := l.shard(accountID)
	mu.Lock()
	defer mu.Unlock()

	acct, err := l.Store.Accounts().GetAccountByID(ctx, accountID)
	if err != nil {
		return Decision{}, err
	}

	// Lazy unlock. The counter is deliberately NOT reset here; a wrong
	// password right after the lock expires re-locks immediately.
	if acct.LockoutExpired(now) {
		acct.Locked = false
		acct.LockoutUntil = nil
	}

	if acct.Locked {
		// Still locked. The attempt is recorded but changes nothing.
		attemptAt := now
		if err := l.persist(ctx, acct, &attemptAt); err != nil {
			return Decision{}, err
		}
		return Decision{Locked: true, Until: *acct.LockoutUntil}, nil
	}

	attemptAt := now
	if passwordOK {
		acct.FailedAttempts = 0
		if err := l.persist(ctx, acct, &attemptAt); err != nil {
			return Decision{}, err
		}
		return Decision{Allow: true}, nil
	}

	acct.FailedAttempts++
	d := Decision{}
	if acct.FailedAttempts >= l.threshold() {
		until := now.Add(l.duration())
		acct.Locked = true
		acct.LockoutUntil = &until
		d.Locked = true
		d.JustLocked = true
		d.Until = until
	}
	if err := l.persist(ctx, acct, &attemptAt); err != nil {
		return Decision{}, err
	}
	return d, nil
}

func (l *LockoutService) persist(ctx context.Context, acct domain.Account, attemptAt *time.Time) error {
	return l.Store.Accounts().UpdateLockoutState(
		ctx, acct.ID, acct.FailedAttempts, acct.Locked, acct.LockoutUntil, attemptAt)
}
