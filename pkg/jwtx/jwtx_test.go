package jwtx_test

import (
	"testing"
	"time"

	"github.com/oakmont/authd/pkg/cryptox"
	"github.com/oakmont/authd/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const testIssuer = "https://auth.example.com"

func newSigner(t *testing.T, algorithm, kid string) jwtx.Signer {
	t.Helper()

	var pemKey []byte
	var err error
	switch algorithm {
	case jwtx.AlgorithmRS256:
		pemKey, err = cryptox.GenerateRSAKey(2048)
	case jwtx.AlgorithmEdDSA:
		pemKey, err = cryptox.GenerateEd25519Key()
	}
	require.NoError(t, err)

	s, err := jwtx.NewSigner(algorithm, kid, pemKey)
	require.NoError(t, err)
	return s
}

func TestSignVerifyRoundTrip(t *testing.T) {
	for _, alg := range []string{jwtx.AlgorithmRS256, jwtx.AlgorithmEdDSA} {
		t.Run(alg, func(t *testing.T) {
			signer := newSigner(t, alg, "key-1")

			keys := jwtx.NewKeySet()
			require.NoError(t, keys.AddSigner(signer, time.Time{}))
			verifier := jwtx.NewVerifier(keys, testIssuer, 0)

			claims := jwtx.NewClaims(
				jwtx.TokenUseAccess, "acct-123", "alice",
				[]string{"user"}, time.Minute, testIssuer, time.Now().UTC(),
			)
			token, err := signer.Sign(claims)
			require.NoError(t, err)

			got, err := verifier.Verify(token)
			require.NoError(t, err)
			require.Equal(t, "acct-123", got.Subject)
			require.Equal(t, "alice", got.Username)
			require.Equal(t, jwtx.TokenUseAccess, got.Use)
			require.Equal(t, []string{"user"}, got.Roles)
			require.Equal(t, claims.ID, got.ID)
		})
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	signer := newSigner(t, jwtx.AlgorithmEdDSA, "key-1")

	keys := jwtx.NewKeySet()
	require.NoError(t, keys.AddSigner(signer, time.Time{}))
	verifier := jwtx.NewVerifier(keys, testIssuer, 0)

	// Expired well past the default leeway.
	claims := jwtx.NewClaims(
		jwtx.TokenUseAccess, "acct-123", "alice",
		nil, time.Minute, testIssuer, time.Now().UTC().Add(-time.Hour),
	)
	token, err := signer.Sign(claims)
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	require.Error(t, err)
}

func TestVerifyLeewayToleratesSkew(t *testing.T) {
	signer := newSigner(t, jwtx.AlgorithmEdDSA, "key-1")

	keys := jwtx.NewKeySet()
	require.NoError(t, keys.AddSigner(signer, time.Time{}))
	verifier := jwtx.NewVerifier(keys, testIssuer, 0)

	// Expired 10s ago, inside the 30s default leeway.
	claims := jwtx.NewClaims(
		jwtx.TokenUseAccess, "acct-123", "alice",
		nil, time.Minute, testIssuer, time.Now().UTC().Add(-70*time.Second),
	)
	token, err := signer.Sign(claims)
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	require.NoError(t, err)
}

func TestVerifyRejectsUnknownKID(t *testing.T) {
	signer := newSigner(t, jwtx.AlgorithmEdDSA, "key-unknown")

	keys := jwtx.NewKeySet() // empty
	verifier := jwtx.NewVerifier(keys, testIssuer, 0)

	claims := jwtx.NewClaims(
		jwtx.TokenUseAccess, "acct-123", "alice",
		nil, time.Minute, testIssuer, time.Now().UTC(),
	)
	token, err := signer.Sign(claims)
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrUnknownKID)
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	signer := newSigner(t, jwtx.AlgorithmEdDSA, "key-1")

	keys := jwtx.NewKeySet()
	require.NoError(t, keys.AddSigner(signer, time.Time{}))
	verifier := jwtx.NewVerifier(keys, testIssuer, 0)

	claims := jwtx.NewClaims(
		jwtx.TokenUseAccess, "acct-123", "alice",
		nil, time.Minute, "https://evil.example.com", time.Now().UTC(),
	)
	token, err := signer.Sign(claims)
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	require.Error(t, err)
}

func TestKeySetExpiry(t *testing.T) {
	signer := newSigner(t, jwtx.AlgorithmEdDSA, "retiring")
	now := time.Now().UTC()

	keys := jwtx.NewKeySet()
	require.NoError(t, keys.AddSigner(signer, now.Add(time.Hour)))

	t.Run("usable inside grace window", func(t *testing.T) {
		_, err := keys.Get("retiring", now)
		require.NoError(t, err)
		require.Len(t, keys.PublicJWKS(now).Keys, 1)
	})

	t.Run("rejected after expiry", func(t *testing.T) {
		later := now.Add(2 * time.Hour)
		_, err := keys.Get("retiring", later)
		require.ErrorIs(t, err, jwtx.ErrNoKey)
		require.Empty(t, keys.PublicJWKS(later).Keys)
	})
}

func TestExtractUnverified(t *testing.T) {
	signer := newSigner(t, jwtx.AlgorithmEdDSA, "key-1")

	claims := jwtx.NewClaims(
		jwtx.TokenUseRefresh, "acct-123", "alice",
		nil, time.Minute, testIssuer, time.Now().UTC(),
	)
	token, err := signer.Sign(claims)
	require.NoError(t, err)

	got, err := jwtx.ExtractUnverified(token)
	require.NoError(t, err)
	require.Equal(t, claims.ID, got.ID)
	require.Equal(t, jwtx.TokenUseRefresh, got.Use)

	_, err = jwtx.ExtractUnverified("garbage")
	require.ErrorIs(t, err, jwtx.ErrMalformed)
}
