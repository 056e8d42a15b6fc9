package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	authhttp "github.com/oakmont/authd/internal/authd/http"
	"github.com/oakmont/authd/internal/authd/service"
	"github.com/oakmont/authd/internal/authd/store"
	"github.com/oakmont/authd/internal/authd/store/drivers/redisstore"
	"github.com/oakmont/authd/internal/authd/store/drivers/sqlite"
	"github.com/oakmont/authd/pkg/cryptox"
	"github.com/oakmont/authd/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application wires the auth service together.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db          store.Store
	redisClient *redis.Client

	keyring      *service.KeyringService
	tokens       *service.TokenIssuerService
	sessions     *service.SessionRegistryService
	lockout      *service.LockoutService
	audit        service.AuditTrail
	login        *service.LoginService
	housekeeping *service.HousekeepingService

	server *http.Server
	router *authhttp.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "authd",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	cryptox.SetPepperPath(cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	keyring, err := initKeyring(context.Background(), cfg, app.db, app.logger)
	if err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.keyring = keyring

	if err := app.initServices(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeeping.Start()

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown drains in-flight requests and releases resources.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeeping.Stop()

	if app.redisClient != nil {
		if err := app.redisClient.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// initDatabase opens the sqlite store and applies migrations.
func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// sessionRepo picks the session registry backend. Accounts, keys and audit
// always live in sqlite; only the session registry can move to redis.
func (app *Application) sessionRepo() (store.Sessions, error) {
	if app.cfg.SessionBackend != "redis" {
		return app.db.Sessions(), nil
	}

	client := redis.NewClient(&redis.Options{Addr: app.cfg.RedisAddr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	app.redisClient = client
	app.logger.Info("session registry backed by redis", "addr", app.cfg.RedisAddr)

	return redisstore.NewSessions(client, app.cfg.RedisPrefix), nil
}

// initServices builds the business logic layer.
func (app *Application) initServices() error {
	sessionRepo, err := app.sessionRepo()
	if err != nil {
		return err
	}

	app.tokens = &service.TokenIssuerService{
		Keyring:    app.keyring,
		Keys:       app.keyring.Keys,
		Issuer:     app.cfg.Issuer,
		AccessTTL:  app.cfg.AccessTokenTTL,
		RefreshTTL: app.cfg.RefreshTokenTTL,
		Leeway:     app.cfg.ClockLeeway,
	}

	app.sessions = &service.SessionRegistryService{Sessions: sessionRepo}
	app.lockout = &service.LockoutService{
		Store:     app.db,
		Threshold: app.cfg.LockoutThreshold,
		Duration:  app.cfg.LockoutDuration,
	}
	app.audit = &service.StoreAuditTrail{Store: app.db, Logger: app.logger}

	app.login = &service.LoginService{
		Store:    app.db,
		Sessions: app.sessions,
		Lockout:  app.lockout,
		Tokens:   app.tokens,
		Audit:    app.audit,
		Logger:   app.logger,
	}

	app.housekeeping = service.NewHousekeepingService(
		app.db,
		app.sessions,
		app.keyring,
		app.audit,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
	app.housekeeping.AuditRetention = app.cfg.AuditRetention

	return nil
}

// initHTTP builds the router and server.
func (app *Application) initHTTP() {
	router := authhttp.NewRouter(
		app.keyring.Keys,
		app.tokens.Verifier(),
		BuildVersion,
		app.db,
		app.logger,
	)

	router.LoginService = app.login
	router.SessionService = app.sessions
	router.KeyringService = app.keyring
	router.AuditTrail = app.audit
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
