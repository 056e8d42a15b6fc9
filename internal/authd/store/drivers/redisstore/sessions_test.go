package redisstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/oakmont/authd/internal/authd/domain"
	"github.com/oakmont/authd/internal/authd/store"
	"github.com/oakmont/authd/internal/authd/store/drivers/redisstore"
)

func newTestSessions(t *testing.T) (*redisstore.Sessions, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return redisstore.NewSessions(client, "authd"), mr
}

func newSession(jti, accountID string) domain.Session {
	now := time.Now().UTC()
	return domain.Session{
		JTI:       jti,
		AccountID: accountID,
		Device:    "cli",
		IP:        "127.0.0.1",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
}

func TestSessionsCreateAndGet(t *testing.T) {
	s, _ := newTestSessions(t)
	ctx := context.Background()

	sess := newSession("jti-1", "acct-1")
	require.NoError(t, s.CreateSession(ctx, sess))

	got, err := s.GetSessionByJTI(ctx, "jti-1")
	require.NoError(t, err)
	require.Equal(t, "acct-1", got.AccountID)
	require.Equal(t, "cli", got.Device)

	_, err = s.GetSessionByJTI(ctx, "jti-unknown")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSessionsRejectExpired(t *testing.T) {
	s, _ := newTestSessions(t)

	sess := newSession("jti-1", "acct-1")
	sess.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	require.Error(t, s.CreateSession(context.Background(), sess))
}

func TestSessionsRevokeIdempotent(t *testing.T) {
	s, _ := newTestSessions(t)
	ctx := context.Background()

	require.NoError(t, s.CreateSession(ctx, newSession("jti-1", "acct-1")))

	require.NoError(t, s.RevokeSession(ctx, "jti-1"))
	require.NoError(t, s.RevokeSession(ctx, "jti-1"))
	require.NoError(t, s.RevokeSession(ctx, "jti-never-existed"))

	_, err := s.GetSessionByJTI(ctx, "jti-1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSessionsRevokeAll(t *testing.T) {
	s, _ := newTestSessions(t)
	ctx := context.Background()

	require.NoError(t, s.CreateSession(ctx, newSession("jti-1", "acct-1")))
	require.NoError(t, s.CreateSession(ctx, newSession("jti-2", "acct-1")))
	require.NoError(t, s.CreateSession(ctx, newSession("jti-3", "acct-2")))

	n, err := s.RevokeAllAccountSessions(ctx, "acct-1")
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	// Other accounts untouched.
	_, err = s.GetSessionByJTI(ctx, "jti-3")
	require.NoError(t, err)

	n, err = s.RevokeAllAccountSessions(ctx, "acct-1")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestSessionsList(t *testing.T) {
	s, mr := newTestSessions(t)
	ctx := context.Background()

	older := newSession("jti-old", "acct-1")
	older.CreatedAt = older.CreatedAt.Add(-time.Minute)
	require.NoError(t, s.CreateSession(ctx, older))
	require.NoError(t, s.CreateSession(ctx, newSession("jti-new", "acct-1")))

	sessions, err := s.ListAccountSessions(ctx, "acct-1")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	require.Equal(t, "jti-new", sessions[0].JTI)
	require.Equal(t, "jti-old", sessions[1].JTI)

	// Redis expiry removes the value; listing prunes the index entry.
	mr.FastForward(2 * time.Hour)
	sessions, err = s.ListAccountSessions(ctx, "acct-1")
	require.NoError(t, err)
	require.Empty(t, sessions)
}

func TestSessionsDeleteExpiredPrunesIndex(t *testing.T) {
	s, mr := newTestSessions(t)
	ctx := context.Background()

	short := newSession("jti-short", "acct-1")
	short.ExpiresAt = time.Now().UTC().Add(time.Minute)
	require.NoError(t, s.CreateSession(ctx, short))
	require.NoError(t, s.CreateSession(ctx, newSession("jti-long", "acct-1")))

	mr.FastForward(5 * time.Minute)

	pruned, err := s.DeleteExpiredSessions(ctx, time.Now().UTC())
	require.NoError(t, err)
	require.EqualValues(t, 1, pruned)

	sessions, err := s.ListAccountSessions(ctx, "acct-1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, "jti-long", sessions[0].JTI)
}
