package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed  = errors.New("jwtx: malformed token")
	ErrMissingKID = errors.New("jwtx: missing kid header")
	ErrUnknownKID = errors.New("jwtx: unknown or expired kid")
)

// Verifier validates JWTs against a KeySet, resolving the verification key
// from the token's kid header. One verifier handles every supported
// algorithm, since the keyset knows what kind of key each kid maps to.
type Verifier struct {
	keys   *KeySet
	issuer string
	leeway time.Duration
}

// NewVerifier creates a Verifier. The leeway is applied to exp/nbf/iat to
// tolerate clock skew between services; pass 0 to use DefaultLeeway.
func NewVerifier(keys *KeySet, issuer string, leeway time.Duration) *Verifier {
	if leeway <= 0 {
		leeway = DefaultLeeway
	}
	return &Verifier{keys: keys, issuer: issuer, leeway: leeway}
}

// Verify validates the token string and returns its claims. Signature,
// issuer, exp and nbf are all enforced; any failure yields an error.
func (v *Verifier) Verify(tokenStr string) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{AlgorithmRS256, AlgorithmEdDSA}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	parser := jwt.NewParser(opts...)

	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, ErrMissingKID
		}

		pub, err := v.keys.Get(kid, time.Now().UTC())
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownKID, kid)
		}
		return pub, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("jwtx: parse or verify: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Claims{}, ErrMalformed
	}

	return *claims, nil
}

// ExtractUnverified parses the claims WITHOUT validating the signature or
// expiry. Needed to read the jti off a presented refresh token before
// deciding whether to revoke its session. Never use the result for a trust
// decision.
func ExtractUnverified(tokenStr string) (Claims, error) {
	parser := jwt.NewParser()
	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(tokenStr, claims); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return *claims, nil
}
