package domain

import "time"

// ScopePolicy is a stored Rego policy overriding the built-in scope check.
// Only enabled policies are loaded at startup.
type ScopePolicy struct {
	ID        string
	Name      string
	Rules     string
	Enabled   bool
	CreatedAt time.Time
}
