package repository

import (
	"context"

	"auth-control-plane/internal/token/domain"
)

// Repository defines persistence for refresh tokens, including the rotation
// state machine's single-winner transition.
type Repository interface {
	// Create persists a new token record. The record must have ID and
	// TokenHash set.
	Create(ctx context.Context, t *domain.RefreshToken) error
	// GetByHash returns the token whose hash matches, or nil if not found.
	GetByHash(ctx context.Context, hash string) (*domain.RefreshToken, error)
	// GetByID returns the token for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.RefreshToken, error)
	// Consume atomically transitions the token from active to consumed,
	// links successor.ID into it, and creates the successor record, all as
	// one step. Returns false when the token was no longer active; the
	// successor is not created in that case. Exactly one concurrent caller
	// can win this transition per token.
	Consume(ctx context.Context, id string, successor *domain.RefreshToken) (bool, error)
	// Revoke marks the token revoked, from any prior status. Unknown ids are
	// a no-op.
	Revoke(ctx context.Context, id string) error
	// RevokeBySession marks every token belonging to the session revoked.
	RevokeBySession(ctx context.Context, sessionID string) error
}
