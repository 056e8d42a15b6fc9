package jwtx

import (
	"crypto/ed25519"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"math/big"
	"sync"
	"time"
)

var ErrNoKey = errors.New("jwtx: key not found")

// KeySet holds public verification keys in memory, each with an optional
// expiry. Expired keys are never handed out for verification and are dropped
// from the published JWKS, even if still retained in storage for audit.
// Thread-safe.
type KeySet struct {
	mu      sync.RWMutex
	entries map[string]keyEntry
}

type keyEntry struct {
	jwk       JWK
	key       any       // *rsa.PublicKey | ed25519.PublicKey
	expiresAt time.Time // zero = never expires
}

// NewKeySet returns an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{entries: make(map[string]keyEntry)}
}

// AddSigner registers a Signer's public JWK. A zero expiresAt means the key
// never expires (ephemeral mode).
func (k *KeySet) AddSigner(s Signer, expiresAt time.Time) error {
	return k.AddJWK(s.PublicJWK(), expiresAt)
}

// AddJWK adds a JWK and parses it into a usable crypto key.
func (k *KeySet) AddJWK(j JWK, expiresAt time.Time) error {
	key, err := parseJWKToKey(j)
	if err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.entries[j.Kid] = keyEntry{jwk: j, key: key, expiresAt: expiresAt}
	return nil
}

// Get returns the public key for the given kid, or ErrNoKey when the kid is
// unknown or the key has expired.
func (k *KeySet) Get(kid string, now time.Time) (any, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	e, ok := k.entries[kid]
	if !ok {
		return nil, ErrNoKey
	}
	if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
		return nil, ErrNoKey
	}
	return e.key, nil
}

// Remove drops a key from the set.
func (k *KeySet) Remove(kid string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.entries, kid)
}

// PublicJWKS returns the JWKS of all non-expired keys for HTTP serving.
func (k *KeySet) PublicJWKS(now time.Time) JWKS {
	k.mu.RLock()
	defer k.mu.RUnlock()

	var out JWKS
	for _, e := range k.entries {
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			continue
		}
		out.Keys = append(out.Keys, e.jwk)
	}
	return out
}

// IsReady returns true if at least one key is loaded.
func (k *KeySet) IsReady() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.entries) > 0
}

// parseJWKToKey converts a JWK into a crypto public key. Supports RSA and
// Ed25519 (OKP).
func parseJWKToKey(j JWK) (any, error) {
	switch j.Kty {
	case "RSA":
		nb, err := base64.RawURLEncoding.DecodeString(j.N)
		if err != nil {
			return nil, err
		}
		eb, err := base64.RawURLEncoding.DecodeString(j.E)
		if err != nil {
			return nil, err
		}
		n := new(big.Int).SetBytes(nb)
		e := new(big.Int).SetBytes(eb).Int64()
		return &rsa.PublicKey{N: n, E: int(e)}, nil

	case "OKP":
		if j.Crv != "Ed25519" {
			return nil, errors.New("jwtx: unsupported OKP curve " + j.Crv)
		}
		xb, err := base64.RawURLEncoding.DecodeString(j.X)
		if err != nil {
			return nil, err
		}
		if len(xb) != ed25519.PublicKeySize {
			return nil, errors.New("jwtx: invalid Ed25519 public key size")
		}
		return ed25519.PublicKey(xb), nil

	default:
		return nil, errors.New("jwtx: unsupported kty " + j.Kty)
	}
}
