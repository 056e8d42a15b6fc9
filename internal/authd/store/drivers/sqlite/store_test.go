package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/oakmont/authd/internal/authd/domain"
	"github.com/oakmont/authd/internal/authd/store"
	"github.com/oakmont/authd/internal/authd/store/drivers/sqlite"
	"github.com/oakmont/authd/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "authd_test.db")
	s, err := sqlite.NewStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}

func newTestAccount() domain.Account {
	now := time.Now().UTC().Truncate(time.Second)
	return domain.Account{
		ID:           idx.New().String(),
		Username:     "alice-" + idx.New().String(),
		Email:        idx.New().String() + "@example.com",
		PasswordHash: "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		Roles:        []string{"user"},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestAccountsRepo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t.Run("create and fetch", func(t *testing.T) {
		a := newTestAccount()
		require.NoError(t, s.Accounts().CreateAccount(ctx, a))

		got, err := s.Accounts().GetAccountByID(ctx, a.ID)
		require.NoError(t, err)
		require.Equal(t, a.Username, got.Username)
		require.Equal(t, []string{"user"}, got.Roles)
		require.False(t, got.Locked)
		require.Nil(t, got.LockoutUntil)

		byLogin, err := s.Accounts().GetAccountByLogin(ctx, a.Email)
		require.NoError(t, err)
		require.Equal(t, a.ID, byLogin.ID)
	})

	t.Run("duplicate username conflicts", func(t *testing.T) {
		a := newTestAccount()
		require.NoError(t, s.Accounts().CreateAccount(ctx, a))

		dup := newTestAccount()
		dup.Username = a.Username
		err := s.Accounts().CreateAccount(ctx, dup)
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("lockout state round trip", func(t *testing.T) {
		a := newTestAccount()
		require.NoError(t, s.Accounts().CreateAccount(ctx, a))

		until := time.Now().UTC().Add(30 * time.Minute).Truncate(time.Second)
		attempt := time.Now().UTC().Truncate(time.Second)
		require.NoError(t, s.Accounts().UpdateLockoutState(ctx, a.ID, 5, true, &until, &attempt))

		got, err := s.Accounts().GetAccountByID(ctx, a.ID)
		require.NoError(t, err)
		require.True(t, got.Locked)
		require.Equal(t, 5, got.FailedAttempts)
		require.NotNil(t, got.LockoutUntil)
		require.WithinDuration(t, until, *got.LockoutUntil, time.Second)
	})

	t.Run("unknown id is ErrNotFound", func(t *testing.T) {
		_, err := s.Accounts().GetAccountByID(ctx, "nope")
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestSessionsRepo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := newTestAccount()
	require.NoError(t, s.Accounts().CreateAccount(ctx, a))

	now := time.Now().UTC().Truncate(time.Second)
	sess := domain.Session{
		JTI:       "jti-1",
		AccountID: a.ID,
		Device:    "cli",
		IP:        "127.0.0.1",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, s.Sessions().CreateSession(ctx, sess))

	t.Run("get by jti", func(t *testing.T) {
		got, err := s.Sessions().GetSessionByJTI(ctx, "jti-1")
		require.NoError(t, err)
		require.Equal(t, a.ID, got.AccountID)
	})

	t.Run("revoke is idempotent", func(t *testing.T) {
		require.NoError(t, s.Sessions().RevokeSession(ctx, "jti-1"))
		require.NoError(t, s.Sessions().RevokeSession(ctx, "jti-1"))

		_, err := s.Sessions().GetSessionByJTI(ctx, "jti-1")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("revoke all counts sessions", func(t *testing.T) {
		for _, jti := range []string{"jti-2", "jti-3"} {
			sess.JTI = jti
			require.NoError(t, s.Sessions().CreateSession(ctx, sess))
		}

		n, err := s.Sessions().RevokeAllAccountSessions(ctx, a.ID)
		require.NoError(t, err)
		require.EqualValues(t, 2, n)
	})

	t.Run("expired sessions are deleted", func(t *testing.T) {
		sess.JTI = "jti-old"
		sess.ExpiresAt = now.Add(-time.Hour)
		require.NoError(t, s.Sessions().CreateSession(ctx, sess))

		n, err := s.Sessions().DeleteExpiredSessions(ctx, time.Now().UTC())
		require.NoError(t, err)
		require.EqualValues(t, 1, n)
	})
}

func TestSigningKeysRepo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	key := domain.SigningKey{
		ID:                  idx.New().String(),
		Kid:                 "authd-test1",
		Algorithm:           "EdDSA",
		PrivateKeyEncrypted: []byte("encrypted"),
		CreatedAt:           now,
		ExpiresAt:           now.Add(365 * 24 * time.Hour),
	}
	require.NoError(t, s.SigningKeys().CreateSigningKey(ctx, key))

	t.Run("active key is the unretired one", func(t *testing.T) {
		got, err := s.SigningKeys().GetActiveSigningKey(ctx)
		require.NoError(t, err)
		require.Equal(t, "authd-test1", got.Kid)
		require.Nil(t, got.RetiredAt)
	})

	t.Run("retire removes it from active", func(t *testing.T) {
		retiredAt := time.Now().UTC().Truncate(time.Second)
		expiresAt := retiredAt.Add(72 * time.Hour)
		require.NoError(t, s.SigningKeys().RetireSigningKey(ctx, "authd-test1", retiredAt, expiresAt))

		_, err := s.SigningKeys().GetActiveSigningKey(ctx)
		require.ErrorIs(t, err, store.ErrNotFound)

		got, err := s.SigningKeys().GetSigningKeyByKid(ctx, "authd-test1")
		require.NoError(t, err)
		require.NotNil(t, got.RetiredAt)

		// Retiring twice is a not-found, the key is no longer active.
		err = s.SigningKeys().RetireSigningKey(ctx, "authd-test1", retiredAt, expiresAt)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("expired retired keys are purged", func(t *testing.T) {
		n, err := s.SigningKeys().DeleteExpiredSigningKeys(ctx, now.Add(100*time.Hour))
		require.NoError(t, err)
		require.EqualValues(t, 1, n)
	})
}

func TestAuditEventsRepo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		e := domain.AuditEvent{
			ID:        idx.New().String(),
			Kind:      domain.AuditLoginFailed,
			AccountID: "acct-1",
			Username:  "alice",
			IP:        "127.0.0.1",
			CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, s.AuditEvents().AppendAuditEvent(ctx, e))
	}

	events, err := s.AuditEvents().ListAccountAuditEvents(ctx, "acct-1", 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	// Newest first.
	require.Greater(t, events[0].ID, events[1].ID)

	n, err := s.AuditEvents().DeleteAuditEventsBefore(ctx, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
}

func TestMFAChallengesRepo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := newTestAccount()
	require.NoError(t, s.Accounts().CreateAccount(ctx, a))

	now := time.Now().UTC().Truncate(time.Second)
	c := domain.MFAChallenge{
		Token:     "challenge-token",
		AccountID: a.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(domain.MFAChallengeTTL),
	}
	require.NoError(t, s.MFAChallenges().CreateMFAChallenge(ctx, c))

	got, err := s.MFAChallenges().IncrementMFAChallengeAttempts(ctx, c.Token)
	require.NoError(t, err)
	require.Equal(t, 1, got.Attempts)

	require.NoError(t, s.MFAChallenges().DeleteMFAChallenge(ctx, c.Token))
	_, err = s.MFAChallenges().GetMFAChallenge(ctx, c.Token)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := newTestAccount()
	err := s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Accounts().CreateAccount(ctx, a); err != nil {
			return err
		}
		return context.Canceled // force rollback
	})
	require.Error(t, err)

	_, err = s.Accounts().GetAccountByID(ctx, a.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}
