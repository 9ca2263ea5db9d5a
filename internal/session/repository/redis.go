package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"auth-control-plane/internal/session/domain"
)

const redisSessionKeyPrefix = "auth:session:"

// storedSession is the JSON shape persisted in Redis.
type storedSession struct {
	ID        string     `json:"id"`
	AccountID string     `json:"account_id"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// RedisRepository is a Redis-backed session repository.
type RedisRepository struct {
	client redis.UniversalClient
}

var _ Repository = (*RedisRepository)(nil)

// NewRedisRepository returns a session repository backed by the given Redis
// client. The caller owns the client's lifecycle.
func NewRedisRepository(client redis.UniversalClient) *RedisRepository {
	return &RedisRepository{client: client}
}

// GetByID returns the session for id, or nil if not found.
func (r *RedisRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	raw, err := r.client.Get(ctx, redisSessionKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var st storedSession
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &domain.Session{
		ID:        st.ID,
		AccountID: st.AccountID,
		ExpiresAt: st.ExpiresAt,
		RevokedAt: st.RevokedAt,
		CreatedAt: st.CreatedAt,
	}, nil
}

// Create stores the session with a TTL matching its expiry.
func (r *RedisRepository) Create(ctx context.Context, s *domain.Session) error {
	payload, err := json.Marshal(&storedSession{
		ID:        s.ID,
		AccountID: s.AccountID,
		ExpiresAt: s.ExpiresAt,
		RevokedAt: s.RevokedAt,
		CreatedAt: s.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ttl := time.Until(s.ExpiresAt)
	if ttl < time.Second {
		ttl = time.Second
	}
	return r.client.Set(ctx, redisSessionKeyPrefix+s.ID, payload, ttl).Err()
}

// Revoke marks the session revoked. Unknown or already revoked ids are a no-op.
func (r *RedisRepository) Revoke(ctx context.Context, id string) error {
	key := redisSessionKeyPrefix + id
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}
	var st storedSession
	if err := json.Unmarshal(raw, &st); err != nil {
		return fmt.Errorf("unmarshal session: %w", err)
	}
	if st.RevokedAt != nil {
		return nil
	}
	now := time.Now().UTC()
	st.RevokedAt = &now
	payload, err := json.Marshal(&st)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, payload, redis.KeepTTL).Err()
}
