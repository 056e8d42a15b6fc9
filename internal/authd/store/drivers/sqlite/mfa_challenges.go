package sqlite

import (
	"context"
	"time"

	"github.com/oakmont/authd/internal/authd/domain"
)

type mfaChallengesRepo struct {
	db dbtx
}

func (r *mfaChallengesRepo) CreateMFAChallenge(ctx context.Context, c domain.MFAChallenge) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO mfa_challenges (token, account_id, attempts, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)`,
		c.Token, c.AccountID, c.Attempts, c.CreatedAt, c.ExpiresAt)
	return mapConflict(err)
}

func (r *mfaChallengesRepo) GetMFAChallenge(ctx context.Context, token string) (domain.MFAChallenge, error) {
	var c domain.MFAChallenge
	err := r.db.QueryRowContext(ctx,
		`SELECT token, account_id, attempts, created_at, expires_at
		 FROM mfa_challenges WHERE token = ?`, token,
	).Scan(&c.Token, &c.AccountID, &c.Attempts, &c.CreatedAt, &c.ExpiresAt)
	if err != nil {
		return domain.MFAChallenge{}, mapNotFound(err)
	}
	return c, nil
}

func (r *mfaChallengesRepo) IncrementMFAChallengeAttempts(ctx context.Context, token string) (domain.MFAChallenge, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE mfa_challenges SET attempts = attempts + 1 WHERE token = ?`, token)
	if err := requireRow(res, err); err != nil {
		return domain.MFAChallenge{}, err
	}
	return r.GetMFAChallenge(ctx, token)
}

func (r *mfaChallengesRepo) DeleteMFAChallenge(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM mfa_challenges WHERE token = ?`, token)
	return err
}

func (r *mfaChallengesRepo) DeleteExpiredMFAChallenges(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM mfa_challenges WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
