package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/oakmont/authd/internal/authd/domain"
)

type signingKeysRepo struct {
	db dbtx
}

const signingKeyColumns = `id, kid, algorithm, private_key_encrypted, created_at, retired_at, expires_at`

func (r *signingKeysRepo) CreateSigningKey(ctx context.Context, k domain.SigningKey) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO signing_keys (`+signingKeyColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		k.ID, k.Kid, k.Algorithm, k.PrivateKeyEncrypted,
		k.CreatedAt, mapOptionalTime(k.RetiredAt), k.ExpiresAt)
	return mapConflict(err)
}

func (r *signingKeysRepo) GetSigningKeyByKid(ctx context.Context, kid string) (domain.SigningKey, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+signingKeyColumns+` FROM signing_keys WHERE kid = ?`, kid)
	return scanSigningKey(row)
}

func (r *signingKeysRepo) GetActiveSigningKey(ctx context.Context) (domain.SigningKey, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+signingKeyColumns+` FROM signing_keys
		 WHERE retired_at IS NULL ORDER BY created_at DESC LIMIT 1`)
	return scanSigningKey(row)
}

func (r *signingKeysRepo) ListSigningKeys(ctx context.Context) ([]domain.SigningKey, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+signingKeyColumns+` FROM signing_keys ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []domain.SigningKey
	for rows.Next() {
		var k domain.SigningKey
		var retiredAt sql.NullTime
		if err := rows.Scan(&k.ID, &k.Kid, &k.Algorithm, &k.PrivateKeyEncrypted,
			&k.CreatedAt, &retiredAt, &k.ExpiresAt); err != nil {
			return nil, err
		}
		k.RetiredAt = mapNullTimePtr(retiredAt)
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (r *signingKeysRepo) RetireSigningKey(ctx context.Context, kid string, retiredAt, expiresAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE signing_keys SET retired_at = ?, expires_at = ? WHERE kid = ? AND retired_at IS NULL`,
		retiredAt, expiresAt, kid)
	return requireRow(res, err)
}

func (r *signingKeysRepo) DeleteExpiredSigningKeys(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM signing_keys WHERE retired_at IS NOT NULL AND expires_at <= ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanSigningKey(row *sql.Row) (domain.SigningKey, error) {
	var k domain.SigningKey
	var retiredAt sql.NullTime
	err := row.Scan(&k.ID, &k.Kid, &k.Algorithm, &k.PrivateKeyEncrypted,
		&k.CreatedAt, &retiredAt, &k.ExpiresAt)
	if err != nil {
		return domain.SigningKey{}, mapNotFound(err)
	}
	k.RetiredAt = mapNullTimePtr(retiredAt)
	return k, nil
}
