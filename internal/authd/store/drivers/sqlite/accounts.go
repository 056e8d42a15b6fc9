package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/oakmont/authd/internal/authd/domain"
)

type accountsRepo struct {
	db dbtx
}

const accountColumns = `id, username, email, password_hash, roles, mfa_enabled, mfa_secret,
	failed_attempts, locked, lockout_until, last_attempt_at, created_at, updated_at`

func (r *accountsRepo) GetAccountByID(ctx context.Context, id string) (domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

func (r *accountsRepo) GetAccountByLogin(ctx context.Context, login string) (domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE username = ? OR email = ?`, login, login)
	return scanAccount(row)
}

func (r *accountsRepo) CreateAccount(ctx context.Context, a domain.Account) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Username, a.Email, a.PasswordHash, joinRoles(a.Roles),
		a.MFAEnabled, mapOptionalString(a.MFASecret),
		a.FailedAttempts, a.Locked,
		mapOptionalTime(a.LockoutUntil), mapOptionalTime(a.LastAttemptAt),
		a.CreatedAt, a.UpdatedAt,
	)
	return mapConflict(err)
}

func (r *accountsRepo) UpdateLockoutState(
	ctx context.Context,
	accountID string,
	failedAttempts int,
	locked bool,
	lockoutUntil, lastAttemptAt *time.Time,
) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts
		 SET failed_attempts = ?, locked = ?, lockout_until = ?, last_attempt_at = ?, updated_at = ?
		 WHERE id = ?`,
		failedAttempts, locked,
		mapOptionalTime(lockoutUntil), mapOptionalTime(lastAttemptAt),
		time.Now().UTC(), accountID,
	)
	return requireRow(res, err)
}

func (r *accountsRepo) UpdatePasswordHash(ctx context.Context, accountID string, newHash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET password_hash = ?, updated_at = ? WHERE id = ?`,
		newHash, time.Now().UTC(), accountID)
	return requireRow(res, err)
}

func (r *accountsRepo) UpdateMFASecret(ctx context.Context, accountID string, secret string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET mfa_secret = ?, mfa_enabled = 1, updated_at = ? WHERE id = ?`,
		secret, time.Now().UTC(), accountID)
	return requireRow(res, err)
}

func (r *accountsRepo) DisableMFA(ctx context.Context, accountID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET mfa_secret = NULL, mfa_enabled = 0, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), accountID)
	return requireRow(res, err)
}

func (r *accountsRepo) DeleteAccount(ctx context.Context, accountID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, accountID)
	return requireRow(res, err)
}

func (r *accountsRepo) IsEmpty(ctx context.Context) (bool, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count); err != nil {
		return false, err
	}
	return count == 0, nil
}

func scanAccount(row *sql.Row) (domain.Account, error) {
	var a domain.Account
	var roles string
	var mfaSecret sql.NullString
	var lockoutUntil, lastAttemptAt sql.NullTime

	err := row.Scan(
		&a.ID, &a.Username, &a.Email, &a.PasswordHash, &roles,
		&a.MFAEnabled, &mfaSecret,
		&a.FailedAttempts, &a.Locked, &lockoutUntil, &lastAttemptAt,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}

	a.Roles = splitRoles(roles)
	a.MFASecret = mapNullStringPtr(mfaSecret)
	a.LockoutUntil = mapNullTimePtr(lockoutUntil)
	a.LastAttemptAt = mapNullTimePtr(lastAttemptAt)
	return a, nil
}

// requireRow turns a zero-row UPDATE/DELETE into ErrNotFound.
func requireRow(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}
