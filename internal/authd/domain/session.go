package domain

import "time"

// Session is one live refresh-token lineage for an account. The JTI is the
// "jti" claim of the currently valid refresh token; rotation on refresh
// deletes this record and creates a new one under the successor's jti.
type Session struct {
	JTI       string
	AccountID string
	Device    string // free-form client descriptor, e.g. User-Agent
	IP        string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsExpired returns true once the session's refresh token can no longer be
// redeemed.
func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
