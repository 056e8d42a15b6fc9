package app

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full service configuration, loaded from the environment.
type Config struct {
	Issuer string `env:"AUTHD_ISSUER" envDefault:"authd"`

	// Token lifetimes. Zero values fall back to the jwtx defaults.
	AccessTokenTTL  time.Duration `env:"AUTHD_ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"AUTHD_REFRESH_TOKEN_TTL" envDefault:"60m"`
	ClockLeeway     time.Duration `env:"AUTHD_CLOCK_LEEWAY" envDefault:"30s"`

	// Lockout policy.
	LockoutThreshold int           `env:"AUTHD_LOCKOUT_THRESHOLD" envDefault:"5"`
	LockoutDuration  time.Duration `env:"AUTHD_LOCKOUT_DURATION" envDefault:"30m"`

	// Signing keys. Supported algorithms: RS256, EdDSA.
	Algorithm           string        `env:"AUTHD_ALGORITHM" envDefault:"EdDSA"`
	RSABits             int           `env:"AUTHD_RSA_BITS" envDefault:"2048"`
	KeyGracePeriod      time.Duration `env:"AUTHD_KEY_GRACE_PERIOD" envDefault:"72h"`
	KeyRotationInterval time.Duration `env:"AUTHD_KEY_ROTATION_INTERVAL" envDefault:"24h"`
	MasterKeyPath       string        `env:"AUTHD_MASTER_KEY_PATH"`

	// Storage.
	DatabaseFile   string `env:"AUTHD_DATABASE_FILE" envDefault:"authd.db"`
	PepperFile     string `env:"AUTHD_PEPPER_FILE" envDefault:"pepper"`
	SessionBackend string `env:"AUTHD_SESSION_BACKEND" envDefault:"sqlite"` // sqlite or redis
	RedisAddr      string `env:"AUTHD_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPrefix    string `env:"AUTHD_REDIS_PREFIX" envDefault:"authd"`

	// Housekeeping.
	HousekeepingInterval time.Duration `env:"AUTHD_HOUSEKEEPING_INTERVAL" envDefault:"1h"`
	AuditRetention       time.Duration `env:"AUTHD_AUDIT_RETENTION" envDefault:"2160h"` // 90 days

	// Process.
	Env                 string        `env:"ENV" envDefault:"dev"`
	LogLevel            string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat           string        `env:"LOG_FORMAT" envDefault:"json"`
	Port                int           `env:"PORT" envDefault:"8080"`
	ShutdownGracePeriod time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	switch cfg.SessionBackend {
	case "sqlite", "redis":
	default:
		return Config{}, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}

	switch cfg.Algorithm {
	case "RS256", "EdDSA":
	default:
		return Config{}, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}

	return cfg, nil
}
