package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/oakmont/authd/internal/authd/domain"
	"github.com/oakmont/authd/internal/authd/store"
	"github.com/oakmont/authd/pkg/cryptox"
	"github.com/oakmont/authd/pkg/idx"
)

// LoginService orchestrates the login, MFA, refresh, logout, verify and
// register flows. It is the only layer that translates collaborator failures
// into user-visible outcomes, and it audits every outcome before doing so.
type LoginService struct {
	Store    store.Store
	Sessions *SessionRegistryService
	Lockout  *LockoutService
	Tokens   *TokenIssuerService
	Audit    AuditTrail
	Logger   *slog.Logger
}

// LoginInput carries one credential attempt.
type LoginInput struct {
	Username string // username or email
	Password string
	Device   string
	IP       string
}

// LoginResult is the terminal state of a login. Either RequiresMFA is set
// with a challenge and no tokens, or TokenPair is populated.
type LoginResult struct {
	TokenPair    domain.TokenPair
	RequiresMFA  bool
	MFAChallenge string
}

// Login runs the credential state machine. Unknown identifier and wrong
// password are indistinguishable in the returned error; lockout is revealed
// only once an actual attempt has been evaluated.
func (s *LoginService) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	now := time.Now().UTC()

	acct, err := s.Store.Accounts().GetAccountByLogin(ctx, strings.TrimSpace(in.Username))
	if errors.Is(err, store.ErrNotFound) {
		s.Audit.Record(ctx, domain.AuditEvent{
			Kind: domain.AuditLoginFailed, Username: in.Username, IP: in.IP,
			Detail: "unknown identifier",
		})
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, s.internal(ctx, domain.AuditLoginFailed, "", in, err)
	}

	if locked, until := s.Lockout.IsLocked(acct, now); locked {
		s.Audit.Record(ctx, domain.AuditEvent{
			Kind: domain.AuditLoginFailed, AccountID: acct.ID, Username: in.Username, IP: in.IP,
			Detail: "Account locked",
		})
		return LoginResult{}, &AccountLockedError{Until: until}
	}

	passwordOK := cryptox.VerifyPassword(in.Password, acct.PasswordHash) == nil

	decision, err := s.Lockout.RecordAttempt(ctx, acct.ID, passwordOK, now)
	if err != nil {
		return LoginResult{}, s.internal(ctx, domain.AuditLoginFailed, acct.ID, in, err)
	}

	if !decision.Allow {
		if decision.JustLocked {
			s.Audit.Record(ctx, domain.AuditEvent{
				Kind: domain.AuditAccountLocked, AccountID: acct.ID, Username: in.Username, IP: in.IP,
				Detail: fmt.Sprintf("locked until %s", decision.Until.Format(time.RFC3339)),
			})
		}
		s.Audit.Record(ctx, domain.AuditEvent{
			Kind: domain.AuditLoginFailed, AccountID: acct.ID, Username: in.Username, IP: in.IP,
			Detail: "invalid password",
		})
		if decision.Locked {
			return LoginResult{}, &AccountLockedError{Until: decision.Until}
		}
		return LoginResult{}, ErrInvalidCredentials
	}

	if acct.MFAEnabled {
		challenge, err := s.createMFAChallenge(ctx, acct.ID, now)
		if err != nil {
			return LoginResult{}, s.internal(ctx, domain.AuditLoginFailed, acct.ID, in, err)
		}
		s.Audit.Record(ctx, domain.AuditEvent{
			Kind: domain.AuditLoginMFARequired, AccountID: acct.ID, Username: in.Username, IP: in.IP,
		})
		return LoginResult{RequiresMFA: true, MFAChallenge: challenge}, nil
	}

	pair, err := s.issueSession(ctx, acct, in.Device, in.IP)
	if err != nil {
		return LoginResult{}, s.internal(ctx, domain.AuditLoginFailed, acct.ID, in, err)
	}

	s.Audit.Record(ctx, domain.AuditEvent{
		Kind: domain.AuditLoginSuccess, AccountID: acct.ID, Username: in.Username, IP: in.IP,
	})
	return LoginResult{TokenPair: pair}, nil
}

// MFAInput exchanges a challenge plus TOTP code for tokens.
type MFAInput struct {
	Challenge string
	Code      string
	Device    string
	IP        string
}

// CompleteMFA finishes a login that stopped at the MFA gate. Challenges are
// single-use, expire after MFAChallengeTTL and tolerate at most
// MFAChallengeMaxAttempts wrong codes.
func (s *LoginService) CompleteMFA(ctx context.Context, in MFAInput) (LoginResult, error) {
	now := time.Now().UTC()

	ch, err := s.Store.MFAChallenges().GetMFAChallenge(ctx, in.Challenge)
	if errors.Is(err, store.ErrNotFound) || (err == nil && now.After(ch.ExpiresAt)) {
		s.Audit.Record(ctx, domain.AuditEvent{
			Kind: domain.AuditLoginMFAFailed, IP: in.IP, Detail: "unknown or expired challenge",
		})
		return LoginResult{}, ErrMFAChallengeInvalid
	}
	if err != nil {
		return LoginResult{}, s.internal(ctx, domain.AuditLoginMFAFailed, "", LoginInput{IP: in.IP}, err)
	}

	acct, err := s.Store.Accounts().GetAccountByID(ctx, ch.AccountID)
	if err != nil {
		return LoginResult{}, s.internal(ctx, domain.AuditLoginMFAFailed, ch.AccountID, LoginInput{IP: in.IP}, err)
	}
	if acct.MFASecret == nil {
		return LoginResult{}, ErrMFAChallengeInvalid
	}

	if !totp.Validate(in.Code, *acct.MFASecret) {
		updated, incErr := s.Store.MFAChallenges().IncrementMFAChallengeAttempts(ctx, in.Challenge)
		if incErr == nil && updated.Attempts >= domain.MFAChallengeMaxAttempts {
			_ = s.Store.MFAChallenges().DeleteMFAChallenge(ctx, in.Challenge)
		}
		s.Audit.Record(ctx, domain.AuditEvent{
			Kind: domain.AuditLoginMFAFailed, AccountID: acct.ID, Username: acct.Username, IP: in.IP,
			Detail: "invalid code",
		})
		return LoginResult{}, ErrMFAChallengeInvalid
	}

	if err := s.Store.MFAChallenges().DeleteMFAChallenge(ctx, in.Challenge); err != nil {
		return LoginResult{}, s.internal(ctx, domain.AuditLoginMFAFailed, acct.ID, LoginInput{IP: in.IP}, err)
	}

	pair, err := s.issueSession(ctx, acct, in.Device, in.IP)
	if err != nil {
		return LoginResult{}, s.internal(ctx, domain.AuditLoginMFAFailed, acct.ID, LoginInput{IP: in.IP}, err)
	}

	s.Audit.Record(ctx, domain.AuditEvent{
		Kind: domain.AuditLoginSuccess, AccountID: acct.ID, Username: acct.Username, IP: in.IP,
		Detail: "mfa",
	})
	return LoginResult{TokenPair: pair}, nil
}

// Refresh rotates a refresh token: the presented token's session is revoked
// and a fresh pair with a new session replaces it. Refresh tokens are
// single-use; replaying one fails with ErrSessionInvalid.
func (s *LoginService) Refresh(ctx context.Context, refreshToken, device, ip string) (domain.TokenPair, error) {
	now := time.Now().UTC()

	claims, err := s.Tokens.VerifyRefresh(refreshToken)
	if err != nil {
		s.Audit.Record(ctx, domain.AuditEvent{
			Kind: domain.AuditTokenRefreshFail, IP: ip, Detail: "invalid refresh token",
		})
		return domain.TokenPair{}, ErrInvalidToken
	}

	sess, err := s.Sessions.FindByJTI(ctx, claims.ID, now)
	if errors.Is(err, ErrSessionInvalid) {
		s.Audit.Record(ctx, domain.AuditEvent{
			Kind: domain.AuditTokenRefreshFail, AccountID: claims.Subject, IP: ip,
			Detail: "session revoked or expired",
		})
		return domain.TokenPair{}, ErrSessionInvalid
	}
	if err != nil {
		return domain.TokenPair{}, s.internal(ctx, domain.AuditTokenRefreshFail, claims.Subject, LoginInput{IP: ip}, err)
	}

	acct, err := s.Store.Accounts().GetAccountByID(ctx, sess.AccountID)
	if err != nil {
		return domain.TokenPair{}, s.internal(ctx, domain.AuditTokenRefreshFail, sess.AccountID, LoginInput{IP: ip}, err)
	}

	// Rotation on use. Revoke first so a concurrent replay of the old
	// token loses the race.
	if err := s.Sessions.Revoke(ctx, claims.ID); err != nil {
		return domain.TokenPair{}, s.internal(ctx, domain.AuditTokenRefreshFail, acct.ID, LoginInput{IP: ip}, err)
	}

	pair, err := s.issueSession(ctx, acct, device, ip)
	if err != nil {
		return domain.TokenPair{}, s.internal(ctx, domain.AuditTokenRefreshFail, acct.ID, LoginInput{IP: ip}, err)
	}

	s.Audit.Record(ctx, domain.AuditEvent{
		Kind: domain.AuditTokenRefreshed, AccountID: acct.ID, Username: acct.Username, IP: ip,
	})
	return pair, nil
}

// Logout revokes the session behind a presented refresh token. The token is
// not fully validated, only parsed for its jti; logout of an already-revoked
// session still succeeds. A token that cannot even be parsed is an input
// error, not a silent success.
func (s *LoginService) Logout(ctx context.Context, refreshToken, ip string) error {
	claims, err := s.Tokens.ExtractClaims(refreshToken)
	if err != nil || claims.ID == "" {
		s.Audit.Record(ctx, domain.AuditEvent{
			Kind: domain.AuditLogoutFailed, IP: ip, Detail: "malformed refresh token",
		})
		return ErrInvalidInput
	}

	if err := s.Sessions.Revoke(ctx, claims.ID); err != nil {
		return s.internal(ctx, domain.AuditLogoutFailed, claims.Subject, LoginInput{IP: ip}, err)
	}

	s.Audit.Record(ctx, domain.AuditEvent{
		Kind: domain.AuditLogoutSuccess, AccountID: claims.Subject, IP: ip,
	})
	return nil
}

// LogoutAll revokes every session the account has and reports the count.
func (s *LoginService) LogoutAll(ctx context.Context, accountID, ip string) (int64, error) {
	count, err := s.Sessions.RevokeAll(ctx, accountID)
	if err != nil {
		return 0, s.internal(ctx, domain.AuditLogoutFailed, accountID, LoginInput{IP: ip}, err)
	}

	s.Audit.Record(ctx, domain.AuditEvent{
		Kind: domain.AuditLogoutAll, AccountID: accountID, IP: ip,
		Detail: fmt.Sprintf("%d sessions terminated", count),
	})
	return count, nil
}

// VerifyResult mirrors the verify contract: never an error, just a shape
// that says whether the access token is good and what it carries.
type VerifyResult struct {
	IsValid      bool
	AccountID    string
	Username     string
	Roles        []string
	IssuedAt     time.Time
	ExpiresAt    time.Time
	ErrorMessage string
}

// Verify checks an access token and reports its claims.
func (s *LoginService) Verify(ctx context.Context, accessToken string) VerifyResult {
	claims, err := s.Tokens.VerifyAccess(accessToken)
	if err != nil {
		return VerifyResult{IsValid: false, ErrorMessage: "token is invalid or expired"}
	}
	return VerifyResult{
		IsValid:   true,
		AccountID: claims.Subject,
		Username:  claims.Username,
		Roles:     claims.Roles,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}
}

// RegisterInput creates a new account.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Roles    []string
	IP       string
}

// Register creates an account with a hashed password. Duplicate username or
// email surfaces as ErrConflict.
func (s *LoginService) Register(ctx context.Context, in RegisterInput) (domain.Account, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	if in.Username == "" || in.Email == "" || !strings.Contains(in.Email, "@") {
		return domain.Account{}, fmt.Errorf("%w: username and a valid email are required", ErrInvalidInput)
	}
	if len(in.Password) < 8 {
		return domain.Account{}, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return domain.Account{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	roles := in.Roles
	if len(roles) == 0 {
		roles = []string{"user"}
	}
	acct := domain.Account{
		ID:           idx.New().String(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Roles:        roles,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.Store.Accounts().CreateAccount(ctx, acct); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Account{}, ErrConflict
		}
		return domain.Account{}, fmt.Errorf("create account: %w", err)
	}

	s.Audit.Record(ctx, domain.AuditEvent{
		Kind: domain.AuditAccountCreated, AccountID: acct.ID, Username: acct.Username, IP: in.IP,
	})
	return acct, nil
}

// issueSession mints a token pair and registers the refresh jti as a session.
func (s *LoginService) issueSession(ctx context.Context, acct domain.Account, device, ip string) (domain.TokenPair, error) {
	pair, refreshClaims, err := s.Tokens.IssuePair(ctx, acct)
	if err != nil {
		return domain.TokenPair{}, err
	}

	err = s.Sessions.Create(ctx, refreshClaims.ID, acct.ID, device, ip,
		refreshClaims.IssuedAt.Time, refreshClaims.ExpiresAt.Time)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return pair, nil
}

func (s *LoginService) createMFAChallenge(ctx context.Context, accountID string, now time.Time) (string, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}
	err = s.Store.MFAChallenges().CreateMFAChallenge(ctx, domain.MFAChallenge{
		Token:     token,
		AccountID: accountID,
		CreatedAt: now,
		ExpiresAt: now.Add(domain.MFAChallengeTTL),
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// internal audits an unexpected lower-level failure and folds it into a
// generic operation error.
func (s *LoginService) internal(ctx context.Context, kind, accountID string, in LoginInput, err error) error {
	s.Logger.Error("auth operation failed", "kind", kind, "account_id", accountID, "err", err)
	s.Audit.Record(ctx, domain.AuditEvent{
		Kind: kind, AccountID: accountID, Username: in.Username, IP: in.IP,
		Detail: "internal error",
	})
	return fmt.Errorf("auth operation failed: %w", err)
}
