package jwtx

import (
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Supported JWT signing algorithms.
const (
	AlgorithmRS256 = "RS256"
	AlgorithmEdDSA = "EdDSA"
)

// Signer is anything that can sign claims into a compact JWT.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)
	PublicJWK() JWK
}

// NewSigner creates a signer for the given algorithm from PEM bytes.
// RSA keys may be PKCS1 or PKCS8; Ed25519 keys must be PKCS8.
func NewSigner(algorithm, kid string, pemKey []byte) (Signer, error) {
	switch algorithm {
	case AlgorithmRS256:
		return newRS256Signer(kid, pemKey)
	case AlgorithmEdDSA:
		return newEdDSASigner(kid, pemKey)
	default:
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q (supported: RS256, EdDSA)", algorithm)
	}
}

type rs256Signer struct {
	kid string
	key *rsa.PrivateKey
}

func newRS256Signer(kid string, pemKey []byte) (*rs256Signer, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("jwtx: invalid PEM for RSA key")
	}

	var key *rsa.PrivateKey
	switch block.Type {
	case "RSA PRIVATE KEY":
		parsed, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("jwtx: parse PKCS1: %w", err)
		}
		key = parsed
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("jwtx: parse PKCS8: %w", err)
		}
		rk, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("jwtx: not an RSA private key")
		}
		key = rk
	default:
		return nil, fmt.Errorf("jwtx: unsupported PEM type %q", block.Type)
	}

	return &rs256Signer{kid: kid, key: key}, nil
}

func (s *rs256Signer) Alg() string { return AlgorithmRS256 }
func (s *rs256Signer) KID() string { return s.kid }

func (s *rs256Signer) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}

func (s *rs256Signer) PublicJWK() JWK {
	return NewRSAJWK(s.kid, AlgorithmRS256, &s.key.PublicKey)
}

type eddsaSigner struct {
	kid string
	key ed25519.PrivateKey
}

func newEdDSASigner(kid string, pemKey []byte) (*eddsaSigner, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("jwtx: invalid PEM for Ed25519 key")
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("jwtx: parse PKCS8: %w", err)
	}
	key, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("jwtx: not an Ed25519 private key")
	}

	return &eddsaSigner{kid: kid, key: key}, nil
}

func (s *eddsaSigner) Alg() string { return AlgorithmEdDSA }
func (s *eddsaSigner) KID() string { return s.kid }

func (s *eddsaSigner) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}

func (s *eddsaSigner) PublicJWK() JWK {
	return NewEd25519JWK(s.kid, AlgorithmEdDSA, s.key.Public().(ed25519.PublicKey))
}
