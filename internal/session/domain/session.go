package domain

import "time"

// Session is a server-side login session, identified to the client only via
// the session cookie. One session per login; logout revokes it and cascades
// to the refresh-token lineage rooted at it.
type Session struct {
	ID        string
	AccountID string
	ExpiresAt time.Time
	RevokedAt *time.Time // nil when not revoked
	CreatedAt time.Time
}

// Revoked reports whether the session has been revoked.
func (s *Session) Revoked() bool {
	return s.RevokedAt != nil
}

// Live reports whether the session is usable at the given time: not revoked
// and not expired.
func (s *Session) Live(now time.Time) bool {
	return !s.Revoked() && now.Before(s.ExpiresAt)
}
