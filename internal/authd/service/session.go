package service

import (
	"context"
	"errors"
	"time"

	"github.com/oakmont/authd/internal/authd/domain"
	"github.com/oakmont/authd/internal/authd/store"
)

// SessionRegistryService tracks live refresh-token lineages. A session exists
// from login until logout, refresh rotation or expiry; presence in the
// registry is what makes a refresh token redeemable.
type SessionRegistryService struct {
	Sessions store.Sessions
}

// Create registers a session under the refresh token's jti. Expiry comes
// from the token so the registry can never outlive the credential.
func (s *SessionRegistryService) Create(ctx context.Context, jti, accountID, device, ip string, createdAt, expiresAt time.Time) error {
	return s.Sessions.CreateSession(ctx, domain.Session{
		JTI:       jti,
		AccountID: accountID,
		Device:    device,
		IP:        ip,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	})
}

// FindByJTI returns the live session for a refresh jti, or ErrSessionInvalid.
func (s *SessionRegistryService) FindByJTI(ctx context.Context, jti string, now time.Time) (domain.Session, error) {
	sess, err := s.Sessions.GetSessionByJTI(ctx, jti)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Session{}, ErrSessionInvalid
	}
	if err != nil {
		return domain.Session{}, err
	}
	if sess.IsExpired(now) {
		return domain.Session{}, ErrSessionInvalid
	}
	return sess, nil
}

// Revoke removes a session. Revoking twice, or revoking a jti that never
// existed, succeeds quietly.
func (s *SessionRegistryService) Revoke(ctx context.Context, jti string) error {
	return s.Sessions.RevokeSession(ctx, jti)
}

// RevokeAll removes every session for the account and reports the count.
func (s *SessionRegistryService) RevokeAll(ctx context.Context, accountID string) (int64, error) {
	return s.Sessions.RevokeAllAccountSessions(ctx, accountID)
}

// List returns the account's live sessions, newest first.
func (s *SessionRegistryService) List(ctx context.Context, accountID string) ([]domain.Session, error) {
	return s.Sessions.ListAccountSessions(ctx, accountID)
}

// CleanupExpired is housekeeping support.
func (s *SessionRegistryService) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	return s.Sessions.DeleteExpiredSessions(ctx, now)
}
