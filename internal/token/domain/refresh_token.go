package domain

import "time"

// Status is the lifecycle state of a refresh token. Active tokens become
// consumed (normal rotation) or revoked (logout, reuse cascade); consumed and
// revoked are terminal.
type Status string

const (
	StatusActive   Status = "active"
	StatusConsumed Status = "consumed"
	StatusRevoked  Status = "revoked"
)

// RefreshToken is the stored record for one opaque refresh token value. The
// value itself is never stored; lookups go through its SHA-256 hash.
// Successor links form a forward singly-linked chain rooted at a login:
// consuming a token is the only way to produce its successor.
type RefreshToken struct {
	ID          string
	SessionID   string
	AccountID   string
	Scopes      []string
	TokenHash   string
	Status      Status
	SuccessorID string // id of the replacing token; empty until consumed
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// Expired reports whether the token is past its expiry at the given time.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
