package authapi

import (
	"context"
	"errors"
	"net/http"
)

// Login performs a credential login and returns an authenticated Session.
//
// When the account requires a second factor the returned error is an
// *MFARequiredError carrying the challenge token; complete the login with
// CompleteMFA. When the account is locked the error is an
// *AccountLockedError.
func (c *Client) Login(ctx context.Context, username, password, device string) (*Session, error) {
	resp, err := c.postJSON(ctx, "/v1/auth/login", LoginRequest{
		Username: username,
		Password: password,
		Device:   device,
	})
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return nil, err
	}
	return newSession(c, &tokenResp), nil
}

// CompleteMFA finishes a login that returned an MFARequiredError.
func (c *Client) CompleteMFA(ctx context.Context, mfaToken, code, device string) (*Session, error) {
	resp, err := c.postJSON(ctx, "/v1/auth/mfa", MFACompleteRequest{
		MFAToken: mfaToken,
		Code:     code,
		Device:   device,
	})
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return nil, err
	}
	return newSession(c, &tokenResp), nil
}

// Refresh exchanges a refresh token for a new token pair. The presented
// token is consumed; only the returned pair remains valid.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	resp, err := c.postJSON(ctx, "/v1/auth/refresh", RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return nil, err
	}
	return &tokenResp, nil
}

// Register creates a new account.
func (c *Client) Register(ctx context.Context, username, email, password string) (*RegisterResponse, error) {
	resp, err := c.postJSON(ctx, "/v1/auth/register", RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
	})
	if err != nil {
		return nil, err
	}

	var regResp RegisterResponse
	if err := decodeJSON(resp, &regResp, http.StatusCreated); err != nil {
		return nil, err
	}
	return &regResp, nil
}

// Verify asks the service whether an access token is valid. The endpoint
// answers 200 for both outcomes; inspect Valid on the response.
func (c *Client) Verify(ctx context.Context, accessToken string) (*VerifyResponse, error) {
	resp, err := c.postJSON(ctx, "/v1/auth/verify", VerifyRequest{AccessToken: accessToken})
	if err != nil {
		return nil, err
	}

	var verifyResp VerifyResponse
	if err := decodeJSON(resp, &verifyResp, http.StatusOK); err != nil {
		return nil, err
	}
	return &verifyResp, nil
}

// Logout revokes the session behind a refresh token. Revoking an
// already-revoked session is not an error.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	resp, err := c.postJSON(ctx, "/v1/auth/logout", LogoutRequest{RefreshToken: refreshToken})
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// JWKS fetches the public key set used to verify token signatures.
func (c *Client) JWKS(ctx context.Context) (*JWKSResponse, error) {
	resp, err := c.get(ctx, "/.well-known/jwks.json")
	if err != nil {
		return nil, err
	}

	var jwks JWKSResponse
	if err := decodeJSON(resp, &jwks, http.StatusOK); err != nil {
		return nil, err
	}
	return &jwks, nil
}

// Livez reports whether the service process is up.
func (c *Client) Livez(ctx context.Context) (*HealthResponse, error) {
	resp, err := c.get(ctx, "/livez")
	if err != nil {
		return nil, err
	}

	var health HealthResponse
	if err := decodeJSON(resp, &health, http.StatusOK); err != nil {
		return nil, err
	}
	return &health, nil
}

// Readyz reports whether the service and its dependencies are ready. A
// degraded service answers 503; the parsed body is still returned alongside
// the error when possible.
func (c *Client) Readyz(ctx context.Context) (*HealthResponse, error) {
	resp, err := c.get(ctx, "/readyz")
	if err != nil {
		return nil, err
	}

	var health HealthResponse
	if err := decodeJSON(resp, &health, http.StatusOK); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable {
			return nil, apiErr
		}
		return nil, err
	}
	return &health, nil
}
