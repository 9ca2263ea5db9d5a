package repository

import (
	"context"
	"sync"

	"auth-control-plane/internal/client/domain"
)

// MemoryRepository is an in-memory client repository for development and tests.
type MemoryRepository struct {
	mu sync.RWMutex
	m  map[string]*domain.Client
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository returns an empty in-memory client repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{m: make(map[string]*domain.Client)}
}

// GetByClientID returns the client with the given client_id, or nil if not found.
func (r *MemoryRepository) GetByClientID(ctx context.Context, clientID string) (*domain.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.m[clientID]
	if !ok {
		return nil, nil
	}
	cp := *c
	cp.AllowedScopes = append([]string(nil), c.AllowedScopes...)
	return &cp, nil
}

// Create stores the client. Returns ErrDuplicate when the client_id exists.
func (r *MemoryRepository) Create(ctx context.Context, c *domain.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[c.ClientID]; ok {
		return ErrDuplicate
	}
	cp := *c
	cp.AllowedScopes = append([]string(nil), c.AllowedScopes...)
	r.m[c.ClientID] = &cp
	return nil
}
