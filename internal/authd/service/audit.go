package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/oakmont/authd/internal/authd/domain"
	"github.com/oakmont/authd/internal/authd/store"
	"github.com/oakmont/authd/pkg/idx"
)

// AuditTrail records security-relevant events. Recording is fire-and-forget:
// a failing sink must never block or fail a login.
type AuditTrail interface {
	Record(ctx context.Context, e domain.AuditEvent)
}

// StoreAuditTrail persists events through the store's audit repository.
type StoreAuditTrail struct {
	Store  store.Store
	Logger *slog.Logger
}

func (a *StoreAuditTrail) Record(ctx context.Context, e domain.AuditEvent) {
	if e.ID == "" {
		e.ID = idx.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	// Detach from the request context so a cancelled request still gets
	// its event written.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := a.Store.AuditEvents().AppendAuditEvent(writeCtx, e); err != nil {
		a.Logger.Error("audit event dropped",
			"kind", e.Kind,
			"account_id", e.AccountID,
			"err", err,
		)
	}
}

// NopAuditTrail discards all events. Used in tests and ephemeral setups.
type NopAuditTrail struct{}

func (NopAuditTrail) Record(context.Context, domain.AuditEvent) {}
