package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oakmont/authd/internal/authd/domain"
	"github.com/oakmont/authd/internal/authd/store"
	"github.com/oakmont/authd/pkg/cryptox"
	"github.com/oakmont/authd/pkg/idx"
	"github.com/oakmont/authd/pkg/jwtx"
)

// Keyring defaults.
const (
	DefaultKeyGracePeriod    = 72 * time.Hour
	DefaultRotationInterval  = 24 * time.Hour
	defaultActiveKeyLifetime = 365 * 24 * time.Hour
)

// KeyringService owns the signing keys. Exactly one key is active for
// signing at any time; rotation retires it into a verification-only grace
// window and installs a fresh key. Concurrent rotations coalesce into one.
//
// In ephemeral mode (Store == nil) keys live only in memory and retired keys
// survive until restart. In persistent mode keys are encrypted and stored so
// they survive restarts.
type KeyringService struct {
	Store            store.Store // nil for ephemeral mode
	Keys             *jwtx.KeySet
	Algorithm        string
	RSABits          int
	GracePeriod      time.Duration // verification window for retired keys
	RotationInterval time.Duration // cadence checked by ShouldRotate

	mu          sync.Mutex
	active      jwtx.Signer
	activeSince time.Time
	inflight    chan struct{}
	inflightKid string
	inflightErr error
}

func (k *KeyringService) grace() time.Duration {
	if k.GracePeriod > 0 {
		return k.GracePeriod
	}
	return DefaultKeyGracePeriod
}

func (k *KeyringService) rotationInterval() time.Duration {
	if k.RotationInterval > 0 {
		return k.RotationInterval
	}
	return DefaultRotationInterval
}

// LoadFromStore restores the keyring from persisted keys: the unretired key
// becomes the active signer, retired unexpired keys join the keyset for
// verification only. When no active key exists one is generated, so a fresh
// deployment comes up signing immediately.
func (k *KeyringService) LoadFromStore(ctx context.Context) error {
	if k.Store == nil {
		_, err := k.CurrentSigner(ctx)
		return err
	}

	now := time.Now().UTC()
	keys, err := k.Store.SigningKeys().ListSigningKeys(ctx)
	if err != nil {
		return fmt.Errorf("list signing keys: %w", err)
	}

	k.mu.Lock()
	for _, rec := range keys {
		if rec.IsExpired(now) {
			continue
		}
		if rec.IsActive(now) {
			signer, err := k.signerFromRecord(rec)
			if err != nil {
				k.mu.Unlock()
				return fmt.Errorf("restore active key %s: %w", rec.Kid, err)
			}
			k.active = signer
			k.activeSince = rec.CreatedAt
			if err := k.Keys.AddSigner(signer, time.Time{}); err != nil {
				k.mu.Unlock()
				return err
			}
			continue
		}
		// Retired key inside its grace window: verification only.
		signer, err := k.signerFromRecord(rec)
		if err != nil {
			k.mu.Unlock()
			return fmt.Errorf("restore retired key %s: %w", rec.Kid, err)
		}
		if err := k.Keys.AddSigner(signer, rec.ExpiresAt); err != nil {
			k.mu.Unlock()
			return err
		}
	}
	k.mu.Unlock()

	_, err = k.CurrentSigner(ctx)
	return err
}

// CurrentSigner returns the active signer, generating and persisting a first
// key when none exists yet.
func (k *KeyringService) CurrentSigner(ctx context.Context) (jwtx.Signer, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.active != nil {
		return k.active, nil
	}

	signer, createdAt, err := k.generateAndPersist(ctx, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}
	k.active = signer
	k.activeSince = createdAt
	if err := k.Keys.AddSigner(signer, time.Time{}); err != nil {
		return nil, err
	}
	return k.active, nil
}

// ActiveKid returns the kid of the active key, or "" when none is loaded.
func (k *KeyringService) ActiveKid() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.active == nil {
		return ""
	}
	return k.active.KID()
}

// ShouldRotate reports whether the active key has been signing for longer
// than the rotation interval.
func (k *KeyringService) ShouldRotate(now time.Time) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.active == nil {
		return false
	}
	return now.Sub(k.activeSince) >= k.rotationInterval()
}

// Rotate retires the active key into its grace window and installs a fresh
// one, returning the new kid. Concurrent calls coalesce: every caller gets
// the kid of the single rotation that actually ran.
func (k *KeyringService) Rotate(ctx context.Context) (string, error) {
	k.mu.Lock()
	if k.inflight != nil {
		ch := k.inflight
		k.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return "", ctx.Err()
		}
		k.mu.Lock()
		kid, err := k.inflightKid, k.inflightErr
		k.mu.Unlock()
		return kid, err
	}
	ch := make(chan struct{})
	k.inflight = ch
	k.mu.Unlock()

	kid, err := k.doRotate(ctx)

	k.mu.Lock()
	k.inflightKid, k.inflightErr = kid, err
	k.inflight = nil
	k.mu.Unlock()
	close(ch)

	return kid, err
}

func (k *KeyringService) doRotate(ctx context.Context) (string, error) {
	now := time.Now().UTC()

	k.mu.Lock()
	old := k.active
	k.mu.Unlock()

	graceEnd := now.Add(k.grace())

	var signer jwtx.Signer
	var err error
	if k.Store != nil {
		err = k.Store.WithTx(ctx, func(tx store.Tx) error {
			if old != nil {
				if retireErr := tx.SigningKeys().RetireSigningKey(ctx, old.KID(), now, graceEnd); retireErr != nil {
					return fmt.Errorf("retire key %s: %w", old.KID(), retireErr)
				}
			}
			var genErr error
			signer, _, genErr = k.generate(ctx, now, tx)
			return genErr
		})
	} else {
		signer, _, err = k.generate(ctx, now, nil)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	// Old key stays verifiable until the grace window closes.
	if old != nil {
		if err := k.Keys.AddJWK(old.PublicJWK(), graceEnd); err != nil {
			return "", err
		}
	}
	if err := k.Keys.AddSigner(signer, time.Time{}); err != nil {
		return "", err
	}
	k.active = signer
	k.activeSince = now
	return signer.KID(), nil
}

// generateAndPersist is generate without an enclosing transaction. Caller
// holds k.mu.
func (k *KeyringService) generateAndPersist(ctx context.Context, now time.Time) (jwtx.Signer, time.Time, error) {
	if k.Store == nil {
		return k.generate(ctx, now, nil)
	}

	var signer jwtx.Signer
	err := k.Store.WithTx(ctx, func(tx store.Tx) error {
		var genErr error
		signer, _, genErr = k.generate(ctx, now, tx)
		return genErr
	})
	return signer, now, err
}

// generate creates a fresh key pair and, when tx is non-nil, persists it
// encrypted. The new key is created unretired, i.e. active.
func (k *KeyringService) generate(ctx context.Context, now time.Time, tx store.Tx) (jwtx.Signer, time.Time, error) {
	suffix, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return nil, time.Time{}, err
	}
	kid := "authd-" + suffix[:12]

	var pemData []byte
	switch k.Algorithm {
	case jwtx.AlgorithmRS256:
		bits := k.RSABits
		if bits == 0 {
			bits = 2048
		}
		pemData, err = cryptox.GenerateRSAKey(bits)
	case jwtx.AlgorithmEdDSA, "":
		pemData, err = cryptox.GenerateEd25519Key()
	default:
		return nil, time.Time{}, fmt.Errorf("unsupported algorithm: %s", k.Algorithm)
	}
	if err != nil {
		return nil, time.Time{}, err
	}

	algorithm := k.Algorithm
	if algorithm == "" {
		algorithm = jwtx.AlgorithmEdDSA
	}
	signer, err := jwtx.NewSigner(algorithm, kid, pemData)
	if err != nil {
		return nil, time.Time{}, err
	}

	if tx != nil {
		encrypted, err := cryptox.EncryptPrivateKey(pemData)
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("encrypt private key: %w", err)
		}
		rec := domain.SigningKey{
			ID:                  idx.New().String(),
			Kid:                 kid,
			Algorithm:           algorithm,
			PrivateKeyEncrypted: encrypted,
			CreatedAt:           now,
			ExpiresAt:           now.Add(defaultActiveKeyLifetime),
		}
		if err := tx.SigningKeys().CreateSigningKey(ctx, rec); err != nil {
			return nil, time.Time{}, err
		}
	}
	return signer, now, nil
}

func (k *KeyringService) signerFromRecord(rec domain.SigningKey) (jwtx.Signer, error) {
	pemData, err := cryptox.DecryptPrivateKey(rec.PrivateKeyEncrypted)
	if err != nil {
		return nil, fmt.Errorf("decrypt private key: %w", err)
	}
	return jwtx.NewSigner(rec.Algorithm, rec.Kid, pemData)
}
