package http_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	authhttp "github.com/oakmont/authd/internal/authd/http"
	"github.com/oakmont/authd/internal/authd/service"
	"github.com/oakmont/authd/internal/authd/store/drivers/sqlite"
	"github.com/oakmont/authd/pkg/authapi"
	"github.com/oakmont/authd/pkg/jwtx"
)

// newTestServer wires a full stack against a throwaway sqlite store and
// returns an API client pointed at it.
func newTestServer(t *testing.T) *authapi.Client {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "authd_test.db")
	st, err := sqlite.NewStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	keyring := &service.KeyringService{
		Store:     st,
		Keys:      jwtx.NewKeySet(),
		Algorithm: jwtx.AlgorithmEdDSA,
	}
	require.NoError(t, keyring.LoadFromStore(context.Background()))

	tokens := &service.TokenIssuerService{
		Keyring: keyring,
		Keys:    keyring.Keys,
		Issuer:  "https://auth.test",
	}
	sessions := &service.SessionRegistryService{Sessions: st.Sessions()}
	audit := &service.StoreAuditTrail{Store: st, Logger: logger}

	login := &service.LoginService{
		Store:    st,
		Sessions: sessions,
		Lockout:  &service.LockoutService{Store: st},
		Tokens:   tokens,
		Audit:    audit,
		Logger:   logger,
	}

	router := authhttp.NewRouter(keyring.Keys, tokens.Verifier(), "test", st, logger)
	router.LoginService = login
	router.SessionService = sessions
	router.KeyringService = keyring
	router.AuditTrail = audit
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return authapi.NewClient(srv.URL)
}

func TestRegisterLoginFlow(t *testing.T) {
	client := newTestServer(t)
	ctx := context.Background()

	reg, err := client.Register(ctx, "alice", "alice@example.com", "longenough1")
	require.NoError(t, err)
	require.NotEmpty(t, reg.AccountID)

	t.Run("duplicate registration conflicts", func(t *testing.T) {
		_, err := client.Register(ctx, "alice", "other@example.com", "longenough1")
		var apiErr *authapi.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusConflict, apiErr.StatusCode)
	})

	t.Run("wrong password is a 401", func(t *testing.T) {
		_, err := client.Login(ctx, "alice", "wrong", "test")
		var apiErr *authapi.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		require.Equal(t, authapi.ErrorCodeInvalidCredentials, apiErr.Code)
	})

	session, err := client.Login(ctx, "alice", "longenough1", "test")
	require.NoError(t, err)
	require.NotEmpty(t, session.AccessToken())
	require.NotEmpty(t, session.RefreshToken())

	t.Run("verify reports claims", func(t *testing.T) {
		res, err := client.Verify(ctx, session.AccessToken())
		require.NoError(t, err)
		require.True(t, res.Valid)
		require.Equal(t, reg.AccountID, res.AccountID)
		require.Equal(t, "alice", res.Username)
	})

	t.Run("verify rejects garbage", func(t *testing.T) {
		res, err := client.Verify(ctx, "garbage")
		require.NoError(t, err)
		require.False(t, res.Valid)
	})

	t.Run("sessions list includes this login", func(t *testing.T) {
		list, err := session.ListSessions(ctx)
		require.NoError(t, err)
		require.Len(t, list.Sessions, 1)
		require.Equal(t, "test", list.Sessions[0].Device)
	})
}

func TestRefreshAndLogout(t *testing.T) {
	client := newTestServer(t)
	ctx := context.Background()

	_, err := client.Register(ctx, "bob", "bob@example.com", "longenough1")
	require.NoError(t, err)
	session, err := client.Login(ctx, "bob", "longenough1", "test")
	require.NoError(t, err)

	oldRefresh := session.RefreshToken()
	pair, err := client.Refresh(ctx, oldRefresh)
	require.NoError(t, err)
	require.NotEqual(t, oldRefresh, pair.RefreshToken)
	require.Equal(t, "Bearer", pair.TokenType)
	require.Positive(t, pair.ExpiresIn)

	t.Run("old refresh token is dead", func(t *testing.T) {
		_, err := client.Refresh(ctx, oldRefresh)
		var apiErr *authapi.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, authapi.ErrorCodeSessionInvalid, apiErr.Code)
	})

	t.Run("logout then refresh fails", func(t *testing.T) {
		require.NoError(t, client.Logout(ctx, pair.RefreshToken))
		// Idempotent.
		require.NoError(t, client.Logout(ctx, pair.RefreshToken))

		_, err := client.Refresh(ctx, pair.RefreshToken)
		var apiErr *authapi.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, authapi.ErrorCodeSessionInvalid, apiErr.Code)
	})

	t.Run("malformed logout token is a 400", func(t *testing.T) {
		err := client.Logout(ctx, "not-a-jwt")
		var apiErr *authapi.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	})
}

func TestLogoutAllEndpoint(t *testing.T) {
	client := newTestServer(t)
	ctx := context.Background()

	_, err := client.Register(ctx, "carol", "carol@example.com", "longenough1")
	require.NoError(t, err)

	s1, err := client.Login(ctx, "carol", "longenough1", "laptop")
	require.NoError(t, err)
	_, err = client.Login(ctx, "carol", "longenough1", "phone")
	require.NoError(t, err)

	count, err := s1.LogoutAll(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	t.Run("revoked session cannot refresh", func(t *testing.T) {
		_, err := client.Refresh(ctx, s1.RefreshToken())
		var apiErr *authapi.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, authapi.ErrorCodeSessionInvalid, apiErr.Code)
	})
}

func TestAccountLockoutOverHTTP(t *testing.T) {
	client := newTestServer(t)
	ctx := context.Background()

	_, err := client.Register(ctx, "dave", "dave@example.com", "longenough1")
	require.NoError(t, err)

	// The strict per-IP+username limiter allows a burst that covers the
	// lockout threshold, so all five failures reach the service.
	var lockedErr *authapi.AccountLockedError
	for i := 0; i < 5; i++ {
		_, err := client.Login(ctx, "dave", "wrong", "test")
		require.Error(t, err)
		if errors.As(err, &lockedErr) {
			break
		}
	}
	require.NotNil(t, lockedErr)
	require.Positive(t, lockedErr.RetryAfter)

	until, err := time.Parse(time.RFC3339, lockedErr.LockedUntil)
	require.NoError(t, err)
	require.True(t, until.After(time.Now()))
}

func TestJWKSAndHealth(t *testing.T) {
	client := newTestServer(t)
	ctx := context.Background()

	jwks, err := client.JWKS(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, jwks.Keys)
	require.Equal(t, "EdDSA", jwks.Keys[0].Alg)

	live, err := client.Livez(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)

	ready, err := client.Readyz(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Status)
	require.Equal(t, "ok", ready.Checks.Database)
	require.Equal(t, "ok", ready.Checks.Signer)
}

func TestAdminKeyEndpoints(t *testing.T) {
	client := newTestServer(t)
	ctx := context.Background()

	_, err := client.Register(ctx, "erin", "erin@example.com", "longenough1")
	require.NoError(t, err)
	userSession, err := client.Login(ctx, "erin", "longenough1", "test")
	require.NoError(t, err)

	t.Run("non-admin is forbidden", func(t *testing.T) {
		_, err := userSession.RotateKey(ctx)
		var apiErr *authapi.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	})
}
