package repository

import (
	"context"

	"auth-control-plane/internal/policy/domain"
)

// Repository defines persistence for scope policies.
type Repository interface {
	ListEnabled(ctx context.Context) ([]*domain.ScopePolicy, error)
	Create(ctx context.Context, p *domain.ScopePolicy) error
}
