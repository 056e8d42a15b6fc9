package sqlite

import (
	"context"
	"time"

	"github.com/oakmont/authd/internal/authd/domain"
)

type auditEventsRepo struct {
	db dbtx
}

func (r *auditEventsRepo) AppendAuditEvent(ctx context.Context, e domain.AuditEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_events (id, kind, account_id, username, ip, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Kind, e.AccountID, e.Username, e.IP, e.Detail, e.CreatedAt)
	return mapConflict(err)
}

func (r *auditEventsRepo) ListAccountAuditEvents(ctx context.Context, accountID string, limit int) ([]domain.AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	// ULIDs sort by creation time, so ordering by id is creation order.
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, kind, account_id, username, ip, detail, created_at
		 FROM audit_events WHERE account_id = ? ORDER BY id DESC LIMIT ?`,
		accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.AuditEvent
	for rows.Next() {
		var e domain.AuditEvent
		if err := rows.Scan(&e.ID, &e.Kind, &e.AccountID, &e.Username, &e.IP, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *auditEventsRepo) DeleteAuditEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM audit_events WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
