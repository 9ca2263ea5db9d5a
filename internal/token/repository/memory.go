package repository

import (
	"context"
	"sync"
	"time"

	"auth-control-plane/internal/token/domain"
)

// MemoryRepository is an in-memory refresh-token repository for development
// and tests. A janitor goroutine reclaims storage for tokens past expiry;
// correctness never depends on it, since expiry is checked at read time.
type MemoryRepository struct {
	mu     sync.Mutex
	byID   map[string]*domain.RefreshToken
	byHash map[string]string // token hash -> id

	janitorStop chan struct{}
	janitorDone chan struct{}
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository returns an empty in-memory token repository with the
// janitor running at the given interval. interval <= 0 disables the janitor.
// Call Close to stop it.
func NewMemoryRepository(janitorInterval time.Duration) *MemoryRepository {
	r := &MemoryRepository{
		byID:   make(map[string]*domain.RefreshToken),
		byHash: make(map[string]string),
	}
	if janitorInterval > 0 {
		r.janitorStop = make(chan struct{})
		r.janitorDone = make(chan struct{})
		go r.janitor(janitorInterval)
	}
	return r
}

// Close stops the janitor goroutine, if running.
func (r *MemoryRepository) Close() {
	if r.janitorStop == nil {
		return
	}
	close(r.janitorStop)
	<-r.janitorDone
	r.janitorStop = nil
}

func (r *MemoryRepository) janitor(interval time.Duration) {
	defer close(r.janitorDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.sweep(time.Now().UTC())
		case <-r.janitorStop:
			return
		}
	}
}

// sweep removes records past their expiry.
func (r *MemoryRepository) sweep(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.byID {
		if t.Expired(now) {
			delete(r.byHash, t.TokenHash)
			delete(r.byID, id)
		}
	}
}

// Create persists a new token record.
func (r *MemoryRepository) Create(ctx context.Context, t *domain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := copyToken(t)
	r.byID[t.ID] = cp
	r.byHash[t.TokenHash] = t.ID
	return nil
}

// GetByHash returns the token whose hash matches, or nil if not found.
func (r *MemoryRepository) GetByHash(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byHash[hash]
	if !ok {
		return nil, nil
	}
	return copyToken(r.byID[id]), nil
}

// GetByID returns the token for id, or nil if not found.
func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return copyToken(t), nil
}

// Consume performs the active->consumed transition and stores the successor
// under one lock, so exactly one concurrent caller can win.
func (r *MemoryRepository) Consume(ctx context.Context, id string, successor *domain.RefreshToken) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok || t.Status != domain.StatusActive {
		return false, nil
	}
	t.Status = domain.StatusConsumed
	t.SuccessorID = successor.ID
	cp := copyToken(successor)
	r.byID[successor.ID] = cp
	r.byHash[successor.TokenHash] = successor.ID
	return true, nil
}

// Revoke marks the token revoked, from any prior status.
func (r *MemoryRepository) Revoke(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.byID[id]; ok {
		t.Status = domain.StatusRevoked
	}
	return nil
}

// RevokeBySession marks every token belonging to the session revoked.
func (r *MemoryRepository) RevokeBySession(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.byID {
		if t.SessionID == sessionID {
			t.Status = domain.StatusRevoked
		}
	}
	return nil
}

func copyToken(t *domain.RefreshToken) *domain.RefreshToken {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Scopes = append([]string(nil), t.Scopes...)
	return &cp
}
