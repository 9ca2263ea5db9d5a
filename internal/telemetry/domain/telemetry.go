package domain

import "time"

// Security event types emitted by the auth plane.
const (
	EventLoginFailure      = "login_failure"
	EventLoginSuccess      = "login_success"
	EventRefreshReuse      = "refresh_reuse"
	EventSessionRevoked    = "session_revoked"
	EventClientAuthFailure = "client_auth_failure"
	EventRateLimited       = "rate_limited"
)

// SecurityEvent is a single auth security signal (failed login, refresh
// reuse, revocation). The same JSON shape travels over Kafka, lands in
// Postgres, and is pushed to Loki by the worker.
type SecurityEvent struct {
	ID        int64     `json:"id,omitempty"`
	AccountID *string   `json:"account_id,omitempty"`
	ClientID  *string   `json:"client_id,omitempty"`
	SessionID *string   `json:"session_id,omitempty"`
	EventType string    `json:"event_type"`
	Source    string    `json:"source"`
	Metadata  []byte    `json:"metadata,omitempty"` // JSONB
	CreatedAt time.Time `json:"created_at"`
}
