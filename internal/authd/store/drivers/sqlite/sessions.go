package sqlite

import (
	"context"
	"time"

	"github.com/oakmont/authd/internal/authd/domain"
)

type sessionsRepo struct {
	db dbtx
}

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (jti, account_id, device, ip, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.JTI, s.AccountID, s.Device, s.IP, s.CreatedAt, s.ExpiresAt)
	return mapConflict(err)
}

func (r *sessionsRepo) GetSessionByJTI(ctx context.Context, jti string) (domain.Session, error) {
	var s domain.Session
	err := r.db.QueryRowContext(ctx,
		`SELECT jti, account_id, device, ip, created_at, expires_at
		 FROM sessions WHERE jti = ?`, jti,
	).Scan(&s.JTI, &s.AccountID, &s.Device, &s.IP, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	return s, nil
}

// RevokeSession is idempotent: revoking an unknown jti is not an error.
func (r *sessionsRepo) RevokeSession(ctx context.Context, jti string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE jti = ?`, jti)
	return err
}

func (r *sessionsRepo) RevokeAllAccountSessions(ctx context.Context, accountID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE account_id = ?`, accountID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *sessionsRepo) ListAccountSessions(ctx context.Context, accountID string) ([]domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT jti, account_id, device, ip, created_at, expires_at
		 FROM sessions WHERE account_id = ? ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var s domain.Session
		if err := rows.Scan(&s.JTI, &s.AccountID, &s.Device, &s.IP, &s.CreatedAt, &s.ExpiresAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
