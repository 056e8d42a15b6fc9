package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token use values carried in the "use" claim. Refresh tokens must never be
// accepted where an access token is expected, and vice versa.
const (
	TokenUseAccess  = "access"
	TokenUseRefresh = "refresh"
)

// Default token TTLs. Short-lived access tokens, hour-scale refresh tokens
// rotated on every use.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 60 * time.Minute

	// DefaultLeeway is the clock-skew tolerance applied uniformly when
	// validating exp/nbf.
	DefaultLeeway = 30 * time.Second
)

// Claims are the token claims shared by access and refresh tokens. Additive
// changes only, to keep older tokens parseable.
type Claims struct {
	jwt.RegisteredClaims

	// Use distinguishes access from refresh tokens.
	Use string `json:"use,omitempty"`

	// Username for the authenticated account.
	Username string `json:"username,omitempty"`

	// Roles granted to the account, e.g. ["user", "admin"].
	Roles []string `json:"roles,omitempty"`
}

// NewClaims builds minimally-correct claims for the given token use. The jti
// is always fresh; for refresh tokens it doubles as the session registry
// correlation key.
func NewClaims(
	use, subject, username string,
	roles []string,
	ttl time.Duration,
	issuer string,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Use:      use,
		Username: username,
		Roles:    roles,
	}
}

// NewJTI returns a unique identifier for the "jti" claim.
func NewJTI() string {
	return uuid.NewString()
}
