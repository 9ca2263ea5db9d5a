package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"auth-control-plane/internal/session/domain"
)

func newTestRedisRepository(t *testing.T) (*RedisRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRepository(client), mr
}

func newSession(id string, ttl time.Duration) *domain.Session {
	now := time.Now().UTC()
	return &domain.Session{
		ID:        id,
		AccountID: "acc-1",
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

func TestRedisRepository_RoundTrip(t *testing.T) {
	repo, _ := newTestRedisRepository(t)
	ctx := context.Background()

	if err := repo.Create(ctx, newSession("s1", time.Hour)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := repo.GetByID(ctx, "s1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil || got.AccountID != "acc-1" || got.Revoked() {
		t.Fatalf("GetByID: got %+v", got)
	}
	if got, err := repo.GetByID(ctx, "missing"); err != nil || got != nil {
		t.Fatalf("GetByID missing: got %+v, %v; want nil, nil", got, err)
	}
}

func TestRedisRepository_Revoke(t *testing.T) {
	repo, _ := newTestRedisRepository(t)
	ctx := context.Background()

	if err := repo.Create(ctx, newSession("s1", time.Hour)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Revoke(ctx, "s1"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	got, err := repo.GetByID(ctx, "s1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil || !got.Revoked() {
		t.Fatalf("session not revoked: %+v", got)
	}
	first := *got.RevokedAt

	// Second revoke keeps the original timestamp.
	if err := repo.Revoke(ctx, "s1"); err != nil {
		t.Fatalf("Revoke again: %v", err)
	}
	got, err = repo.GetByID(ctx, "s1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !got.RevokedAt.Equal(first) {
		t.Errorf("RevokedAt changed on repeat revoke: %v != %v", got.RevokedAt, first)
	}

	if err := repo.Revoke(ctx, "missing"); err != nil {
		t.Errorf("Revoke missing: %v", err)
	}
}

func TestRedisRepository_ExpiryEvictsSession(t *testing.T) {
	repo, mr := newTestRedisRepository(t)
	ctx := context.Background()

	if err := repo.Create(ctx, newSession("s1", 2*time.Second)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	mr.FastForward(3 * time.Second)

	got, err := repo.GetByID(ctx, "s1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got != nil {
		t.Fatalf("expired session still readable: %+v", got)
	}
}
