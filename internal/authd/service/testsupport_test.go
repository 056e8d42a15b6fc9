package service_test

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oakmont/authd/internal/authd/domain"
	"github.com/oakmont/authd/internal/authd/store"
)

// memStore is an in-memory store.Store used by the service tests. It is not
// transactional: Tx hands back the same maps, which is enough for flows that
// only need the repo contracts.
type memStore struct {
	mu         sync.Mutex
	accounts   map[string]domain.Account
	sessions   map[string]domain.Session
	keys       map[string]domain.SigningKey
	audits     []domain.AuditEvent
	challenges map[string]domain.MFAChallenge
}

func newMemStore() *memStore {
	return &memStore{
		accounts:   make(map[string]domain.Account),
		sessions:   make(map[string]domain.Session),
		keys:       make(map[string]domain.SigningKey),
		challenges: make(map[string]domain.MFAChallenge),
	}
}

func (m *memStore) Accounts() store.Accounts           { return (*memAccounts)(m) }
func (m *memStore) Sessions() store.Sessions           { return (*memSessions)(m) }
func (m *memStore) SigningKeys() store.SigningKeys     { return (*memSigningKeys)(m) }
func (m *memStore) AuditEvents() store.AuditEvents     { return (*memAuditEvents)(m) }
func (m *memStore) MFAChallenges() store.MFAChallenges { return (*memMFAChallenges)(m) }

func (m *memStore) ApplyMigrations() error     { return nil }
func (m *memStore) Close() error               { return nil }
func (m *memStore) Ping(context.Context) error { return nil }

func (m *memStore) Tx(context.Context) (store.Tx, error) {
	return &memTx{memStore: m}, nil
}

func (m *memStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := m.Tx(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

type memTx struct {
	*memStore
}

func (t *memTx) Commit() error   { return nil }
func (t *memTx) Rollback() error { return nil }

type memAccounts memStore

func (m *memAccounts) GetAccountByID(_ context.Context, id string) (domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return domain.Account{}, store.ErrNotFound
	}
	return a, nil
}

func (m *memAccounts) GetAccountByLogin(_ context.Context, login string) (domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if strings.EqualFold(a.Username, login) || strings.EqualFold(a.Email, login) {
			return a, nil
		}
	}
	return domain.Account{}, store.ErrNotFound
}

func (m *memAccounts) CreateAccount(_ context.Context, a domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.accounts {
		if strings.EqualFold(existing.Username, a.Username) || strings.EqualFold(existing.Email, a.Email) {
			return store.ErrAlreadyExists
		}
	}
	m.accounts[a.ID] = a
	return nil
}

func (m *memAccounts) UpdateLockoutState(_ context.Context, accountID string, failedAttempts int, locked bool, lockoutUntil, lastAttemptAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return store.ErrNotFound
	}
	a.FailedAttempts = failedAttempts
	a.Locked = locked
	a.LockoutUntil = lockoutUntil
	a.LastAttemptAt = lastAttemptAt
	m.accounts[accountID] = a
	return nil
}

func (m *memAccounts) UpdatePasswordHash(_ context.Context, accountID, newHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return store.ErrNotFound
	}
	a.PasswordHash = newHash
	m.accounts[accountID] = a
	return nil
}

func (m *memAccounts) UpdateMFASecret(_ context.Context, accountID, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return store.ErrNotFound
	}
	a.MFASecret = &secret
	a.MFAEnabled = true
	m.accounts[accountID] = a
	return nil
}

func (m *memAccounts) DisableMFA(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return store.ErrNotFound
	}
	a.MFASecret = nil
	a.MFAEnabled = false
	m.accounts[accountID] = a
	return nil
}

func (m *memAccounts) DeleteAccount(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[accountID]; !ok {
		return store.ErrNotFound
	}
	delete(m.accounts, accountID)
	return nil
}

func (m *memAccounts) IsEmpty(context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accounts) == 0, nil
}

type memSessions memStore

func (m *memSessions) CreateSession(_ context.Context, s domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.JTI] = s
	return nil
}

func (m *memSessions) GetSessionByJTI(_ context.Context, jti string) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[jti]
	if !ok {
		return domain.Session{}, store.ErrNotFound
	}
	return s, nil
}

func (m *memSessions) RevokeSession(_ context.Context, jti string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, jti)
	return nil
}

func (m *memSessions) RevokeAllAccountSessions(_ context.Context, accountID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for jti, s := range m.sessions {
		if s.AccountID == accountID {
			delete(m.sessions, jti)
			n++
		}
	}
	return n, nil
}

func (m *memSessions) ListAccountSessions(_ context.Context, accountID string) ([]domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Session
	for _, s := range m.sessions {
		if s.AccountID == accountID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSessions) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for jti, s := range m.sessions {
		if now.After(s.ExpiresAt) {
			delete(m.sessions, jti)
			n++
		}
	}
	return n, nil
}

type memSigningKeys memStore

func (m *memSigningKeys) CreateSigningKey(_ context.Context, k domain.SigningKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[k.Kid]; ok {
		return store.ErrAlreadyExists
	}
	m.keys[k.Kid] = k
	return nil
}

func (m *memSigningKeys) GetSigningKeyByKid(_ context.Context, kid string) (domain.SigningKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[kid]
	if !ok {
		return domain.SigningKey{}, store.ErrNotFound
	}
	return k, nil
}

func (m *memSigningKeys) GetActiveSigningKey(context.Context) (domain.SigningKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.keys {
		if k.RetiredAt == nil {
			return k, nil
		}
	}
	return domain.SigningKey{}, store.ErrNotFound
}

func (m *memSigningKeys) ListSigningKeys(context.Context) ([]domain.SigningKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SigningKey
	for _, k := range m.keys {
		out = append(out, k)
	}
	return out, nil
}

func (m *memSigningKeys) RetireSigningKey(_ context.Context, kid string, retiredAt, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[kid]
	if !ok || k.RetiredAt != nil {
		return store.ErrNotFound
	}
	k.RetiredAt = &retiredAt
	k.ExpiresAt = expiresAt
	m.keys[kid] = k
	return nil
}

func (m *memSigningKeys) DeleteExpiredSigningKeys(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for kid, k := range m.keys {
		if k.RetiredAt != nil && now.After(k.ExpiresAt) {
			delete(m.keys, kid)
			n++
		}
	}
	return n, nil
}

type memAuditEvents memStore

func (m *memAuditEvents) AppendAuditEvent(_ context.Context, e domain.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, e)
	return nil
}

func (m *memAuditEvents) ListAccountAuditEvents(_ context.Context, accountID string, limit int) ([]domain.AuditEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AuditEvent
	for i := len(m.audits) - 1; i >= 0 && len(out) < limit; i-- {
		if m.audits[i].AccountID == accountID {
			out = append(out, m.audits[i])
		}
	}
	return out, nil
}

func (m *memAuditEvents) DeleteAuditEventsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []domain.AuditEvent
	var n int64
	for _, e := range m.audits {
		if e.CreatedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	m.audits = kept
	return n, nil
}

type memMFAChallenges memStore

func (m *memMFAChallenges) CreateMFAChallenge(_ context.Context, c domain.MFAChallenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.challenges[c.Token] = c
	return nil
}

func (m *memMFAChallenges) GetMFAChallenge(_ context.Context, token string) (domain.MFAChallenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.challenges[token]
	if !ok {
		return domain.MFAChallenge{}, store.ErrNotFound
	}
	return c, nil
}

func (m *memMFAChallenges) IncrementMFAChallengeAttempts(_ context.Context, token string) (domain.MFAChallenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.challenges[token]
	if !ok {
		return domain.MFAChallenge{}, store.ErrNotFound
	}
	c.Attempts++
	m.challenges[token] = c
	return c, nil
}

func (m *memMFAChallenges) DeleteMFAChallenge(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.challenges, token)
	return nil
}

func (m *memMFAChallenges) DeleteExpiredMFAChallenges(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for token, c := range m.challenges {
		if now.After(c.ExpiresAt) {
			delete(m.challenges, token)
			n++
		}
	}
	return n, nil
}

// recordingAudit captures events so tests can assert on what was emitted.
type recordingAudit struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (r *recordingAudit) Record(_ context.Context, e domain.AuditEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingAudit) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

func (r *recordingAudit) lastOfKind(kind string) (domain.AuditEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Kind == kind {
			return r.events[i], true
		}
	}
	return domain.AuditEvent{}, false
}
