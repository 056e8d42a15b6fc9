package domain

import "time"

// TokenPair is the result of a successful login, MFA completion or refresh.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	TokenType        string // always "Bearer"
}
