package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/oakmont/authd/internal/authd/domain"
	"github.com/oakmont/authd/internal/authd/store"
)

// DefaultAuditRetention is how long audit events are kept before purging.
const DefaultAuditRetention = 90 * 24 * time.Hour

// HousekeepingService periodically cleans up expired records and drives
// scheduled key rotation. Every unit of work is idempotent, so overlapping
// or repeated runs are harmless.
type HousekeepingService struct {
	Store          store.Store
	Sessions       *SessionRegistryService
	Keyring        *KeyringService
	Audit          AuditTrail
	Logger         *slog.Logger
	Interval       time.Duration
	AuditRetention time.Duration

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(
	st store.Store,
	sessions *SessionRegistryService,
	keyring *KeyringService,
	audit AuditTrail,
	logger *slog.Logger,
	interval time.Duration,
) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:          st,
		Sessions:       sessions,
		Keyring:        keyring,
		Audit:          audit,
		Logger:         logger,
		Interval:       interval,
		AuditRetention: DefaultAuditRetention,
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
}

// Start begins the background worker that periodically runs cleanup.
// This is non-blocking and should be called after the database is ready.
// Call Stop() to gracefully shutdown the worker.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop gracefully shuts down the background worker.
// Blocks until the worker has finished any in-progress cleanup.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

// run is the main background worker loop.
func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.Tick(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Tick(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Tick performs one housekeeping pass. Exposed so tests and external
// schedulers can drive it directly; each step is independent, a failure in
// one does not stop the others.
func (s *HousekeepingService) Tick(ctx context.Context) {
	now := time.Now().UTC()
	s.Logger.Debug("starting housekeeping pass")

	if n, err := s.Sessions.CleanupExpired(ctx, now); err != nil {
		s.Logger.Error("failed to delete expired sessions", "err", err)
	} else if n > 0 {
		s.Logger.Info("deleted expired sessions", "count", n)
	}

	if s.Store != nil {
		if n, err := s.Store.MFAChallenges().DeleteExpiredMFAChallenges(ctx, now); err != nil {
			s.Logger.Error("failed to delete expired mfa challenges", "err", err)
		} else if n > 0 {
			s.Logger.Info("deleted expired mfa challenges", "count", n)
		}

		if n, err := s.Store.SigningKeys().DeleteExpiredSigningKeys(ctx, now); err != nil {
			s.Logger.Error("failed to delete expired signing keys", "err", err)
		} else if n > 0 {
			s.Logger.Info("deleted expired signing keys", "count", n)
		}

		retention := s.AuditRetention
		if retention <= 0 {
			retention = DefaultAuditRetention
		}
		if n, err := s.Store.AuditEvents().DeleteAuditEventsBefore(ctx, now.Add(-retention)); err != nil {
			s.Logger.Error("failed to purge audit events", "err", err)
		} else if n > 0 {
			s.Logger.Info("purged audit events", "count", n)
		}
	}

	if s.Keyring != nil && s.Keyring.ShouldRotate(now) {
		kid, err := s.Keyring.Rotate(ctx)
		if err != nil {
			s.Logger.Error("scheduled key rotation failed", "err", err)
		} else {
			s.Logger.Info("rotated signing key", "kid", kid)
			s.Audit.Record(ctx, domain.AuditEvent{
				Kind:   domain.AuditKeyRotated,
				Detail: "new kid " + kid,
			})
		}
	}
}
