package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/oakmont/authd/internal/authd/service"
	"github.com/oakmont/authd/internal/authd/store"
	"github.com/oakmont/authd/pkg/cryptox"
	"github.com/oakmont/authd/pkg/jwtx"
)

// initKeyring loads the signing keyring from the store, generating the first
// key if the store has none. Private keys are encrypted at rest when a
// master key path is configured.
func initKeyring(ctx context.Context, cfg Config, db store.Store, logger *slog.Logger) (*service.KeyringService, error) {
	if cfg.MasterKeyPath != "" {
		cryptox.SetMasterKeyPath(cfg.MasterKeyPath)
		logger.Info("master key path configured", "path", cfg.MasterKeyPath)
	}

	keyring := &service.KeyringService{
		Store:            db,
		Keys:             jwtx.NewKeySet(),
		Algorithm:        cfg.Algorithm,
		RSABits:          cfg.RSABits,
		GracePeriod:      cfg.KeyGracePeriod,
		RotationInterval: cfg.KeyRotationInterval,
	}

	if err := keyring.LoadFromStore(ctx); err != nil {
		return nil, fmt.Errorf("load signing keys: %w", err)
	}

	logger.Info("signing keys ready",
		"algorithm", cfg.Algorithm,
		"active_kid", keyring.ActiveKid(),
		"grace_period", cfg.KeyGracePeriod,
		"rotation_interval", cfg.KeyRotationInterval,
	)

	return keyring, nil
}
