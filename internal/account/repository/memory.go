package repository

import (
	"context"
	"sync"

	"auth-control-plane/internal/account/domain"
)

// MemoryRepository is an in-memory account repository for development and tests.
type MemoryRepository struct {
	mu         sync.RWMutex
	byID       map[string]*domain.Account
	byUsername map[string]string // username -> id
	byEmail    map[string]string // email -> id
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository returns an empty in-memory account repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:       make(map[string]*domain.Account),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
	}
}

// GetByID returns the account for id, or nil if not found.
func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

// GetByUsername returns the account with the given username, or nil if not found.
func (r *MemoryRepository) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byUsername[username]
	if !ok {
		return nil, nil
	}
	cp := *r.byID[id]
	return &cp, nil
}

// GetByEmail returns the account with the given email, or nil if not found.
func (r *MemoryRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return nil, nil
	}
	cp := *r.byID[id]
	return &cp, nil
}

// Create stores the account. Uniqueness of username and email is enforced the
// same way the unique indexes do in Postgres.
func (r *MemoryRepository) Create(ctx context.Context, a *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[a.ID]; ok {
		return ErrDuplicate
	}
	if _, ok := r.byUsername[a.Username]; ok {
		return ErrDuplicate
	}
	if _, ok := r.byEmail[a.Email]; ok {
		return ErrDuplicate
	}
	cp := *a
	r.byID[a.ID] = &cp
	r.byUsername[a.Username] = a.ID
	r.byEmail[a.Email] = a.ID
	return nil
}
