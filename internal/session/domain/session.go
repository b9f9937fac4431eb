package domain

import "time"

// Session is a persisted sign-in of the local auth provider. The refresh token itself is never
// stored; only its SHA-256 hash.
type Session struct {
	ID               string
	UserID           string
	RefreshTokenHash string
	ExpiresAt        time.Time
	RevokedAt        *time.Time // nil when not revoked
	CreatedAt        time.Time
}

// Active reports whether the session is neither revoked nor expired at now.
func (s *Session) Active(now time.Time) bool {
	return s != nil && s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
