package service

import (
	"context"
	"fmt"
	"time"

	"github.com/oakmont/authd/internal/authd/domain"
	"github.com/oakmont/authd/pkg/jwtx"
)

// TokenIssuerService mints and validates the two token kinds. Access and
// refresh tokens share one claim shape and differ in the "use" claim and
// their TTLs; both are signed by the keyring's active key.
type TokenIssuerService struct {
	Keyring    *KeyringService
	Keys       *jwtx.KeySet
	Issuer     string
	AccessTTL  time.Duration // 0 means jwtx.DefaultAccessTokenTTL
	RefreshTTL time.Duration // 0 means jwtx.DefaultRefreshTokenTTL
	Leeway     time.Duration // 0 means jwtx.DefaultLeeway
}

func (t *TokenIssuerService) accessTTL() time.Duration {
	if t.AccessTTL > 0 {
		return t.AccessTTL
	}
	return jwtx.DefaultAccessTokenTTL
}

func (t *TokenIssuerService) refreshTTL() time.Duration {
	if t.RefreshTTL > 0 {
		return t.RefreshTTL
	}
	return jwtx.DefaultRefreshTokenTTL
}

func (t *TokenIssuerService) verifier() *jwtx.Verifier {
	return jwtx.NewVerifier(t.Keys, t.Issuer, t.Leeway)
}

// Verifier exposes the validator configured with this issuer's keyset, for
// HTTP middleware.
func (t *TokenIssuerService) Verifier() *jwtx.Verifier {
	return t.verifier()
}

// IssuePair mints a fresh access/refresh token pair for the account. The
// refresh token's jti keys the session registry entry the caller creates.
func (t *TokenIssuerService) IssuePair(ctx context.Context, acct domain.Account) (domain.TokenPair, jwtx.Claims, error) {
	signer, err := t.Keyring.CurrentSigner(ctx)
	if err != nil {
		return domain.TokenPair{}, jwtx.Claims{}, err
	}

	now := time.Now().UTC()

	accessClaims := jwtx.NewClaims(
		jwtx.TokenUseAccess, acct.ID, acct.Username, acct.Roles, t.accessTTL(), t.Issuer, now)
	access, err := signer.Sign(accessClaims)
	if err != nil {
		return domain.TokenPair{}, jwtx.Claims{}, fmt.Errorf("sign access token: %w", err)
	}

	refreshClaims := jwtx.NewClaims(
		jwtx.TokenUseRefresh, acct.ID, acct.Username, acct.Roles, t.refreshTTL(), t.Issuer, now)
	refresh, err := signer.Sign(refreshClaims)
	if err != nil {
		return domain.TokenPair{}, jwtx.Claims{}, fmt.Errorf("sign refresh token: %w", err)
	}

	pair := domain.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessClaims.ExpiresAt.Time,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshClaims.ExpiresAt.Time,
		TokenType:        "Bearer",
	}
	return pair, refreshClaims, nil
}

// VerifyAccess validates an access token end to end.
func (t *TokenIssuerService) VerifyAccess(tokenStr string) (jwtx.Claims, error) {
	return t.verifyUse(tokenStr, jwtx.TokenUseAccess)
}

// VerifyRefresh validates a refresh token's signature, expiry and use claim.
// Session liveness is the registry's concern, not this method's.
func (t *TokenIssuerService) VerifyRefresh(tokenStr string) (jwtx.Claims, error) {
	return t.verifyUse(tokenStr, jwtx.TokenUseRefresh)
}

// ExtractClaims parses claims without validating the token. Only the logout
// path may use this, to learn the jti of a token it is about to revoke.
func (t *TokenIssuerService) ExtractClaims(tokenStr string) (jwtx.Claims, error) {
	claims, err := jwtx.ExtractUnverified(tokenStr)
	if err != nil {
		return jwtx.Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

func (t *TokenIssuerService) verifyUse(tokenStr, use string) (jwtx.Claims, error) {
	claims, err := t.verifier().Verify(tokenStr)
	if err != nil {
		return jwtx.Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Use != use {
		return jwtx.Claims{}, fmt.Errorf("%w: wrong token use %q", ErrInvalidToken, claims.Use)
	}
	return claims, nil
}
