package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"auth-control-plane/internal/token/domain"
)

// Key layout. Records and the hash index share the record's TTL so reuse
// detection works for the token's whole lifetime and storage reclaims itself.
const (
	redisTokenPrefix   = "auth:refresh:"
	redisHashPrefix    = "auth:refreshhash:"
	redisSessionPrefix = "auth:refreshsession:"
)

// consumeScript performs the active->consumed transition and the successor
// write atomically on the Redis server. Returns 1 when the caller won the
// transition, 0 otherwise.
//
// KEYS[1] old record, KEYS[2] successor record, KEYS[3] successor hash index,
// KEYS[4] session set. ARGV[1] successor id, ARGV[2] successor record JSON,
// ARGV[3] successor TTL millis.
var consumeScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then return 0 end
local obj = cjson.decode(raw)
if obj.status ~= 'active' then return 0 end
obj.status = 'consumed'
obj.successor_id = ARGV[1]
local ttl = redis.call('PTTL', KEYS[1])
if ttl > 0 then
  redis.call('SET', KEYS[1], cjson.encode(obj), 'PX', ttl)
else
  redis.call('SET', KEYS[1], cjson.encode(obj))
end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
redis.call('SET', KEYS[3], ARGV[1], 'PX', ARGV[3])
redis.call('SADD', KEYS[4], ARGV[1])
return 1
`)

// storedToken is the JSON shape persisted in Redis.
type storedToken struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	AccountID   string    `json:"account_id"`
	Scopes      []string  `json:"scopes,omitempty"`
	TokenHash   string    `json:"token_hash"`
	Status      string    `json:"status"`
	SuccessorID string    `json:"successor_id,omitempty"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// RedisRepository is a Redis-backed refresh-token repository.
type RedisRepository struct {
	client redis.UniversalClient
}

var _ Repository = (*RedisRepository)(nil)

// NewRedisRepository returns a token repository backed by the given Redis
// client. The caller owns the client's lifecycle.
func NewRedisRepository(client redis.UniversalClient) *RedisRepository {
	return &RedisRepository{client: client}
}

// Create persists a new token record with a TTL matching its expiry.
func (r *RedisRepository) Create(ctx context.Context, t *domain.RefreshToken) error {
	payload, err := json.Marshal(toStored(t))
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	ttl := ttlFor(t)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisTokenPrefix+t.ID, payload, ttl)
		pipe.Set(ctx, redisHashPrefix+t.TokenHash, t.ID, ttl)
		pipe.SAdd(ctx, redisSessionPrefix+t.SessionID, t.ID)
		pipe.Expire(ctx, redisSessionPrefix+t.SessionID, ttl)
		return nil
	})
	return err
}

// GetByHash returns the token whose hash matches, or nil if not found.
func (r *RedisRepository) GetByHash(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	id, err := r.client.Get(ctx, redisHashPrefix+hash).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// GetByID returns the token for id, or nil if not found.
func (r *RedisRepository) GetByID(ctx context.Context, id string) (*domain.RefreshToken, error) {
	raw, err := r.client.Get(ctx, redisTokenPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var st storedToken
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("unmarshal token: %w", err)
	}
	return fromStored(&st), nil
}

// Consume runs the server-side script so the active->consumed transition and
// the successor write happen atomically; exactly one concurrent caller wins.
func (r *RedisRepository) Consume(ctx context.Context, id string, successor *domain.RefreshToken) (bool, error) {
	payload, err := json.Marshal(toStored(successor))
	if err != nil {
		return false, fmt.Errorf("marshal successor: %w", err)
	}
	keys := []string{
		redisTokenPrefix + id,
		redisTokenPrefix + successor.ID,
		redisHashPrefix + successor.TokenHash,
		redisSessionPrefix + successor.SessionID,
	}
	won, err := consumeScript.Run(ctx, r.client, keys,
		successor.ID, string(payload), ttlFor(successor).Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return won == 1, nil
}

// Revoke marks the token revoked, from any prior status. Unknown ids are a no-op.
func (r *RedisRepository) Revoke(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, domain.StatusRevoked)
}

// RevokeBySession marks every token belonging to the session revoked.
func (r *RedisRepository) RevokeBySession(ctx context.Context, sessionID string) error {
	ids, err := r.client.SMembers(ctx, redisSessionPrefix+sessionID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}
	for _, id := range ids {
		if err := r.setStatus(ctx, id, domain.StatusRevoked); err != nil {
			return err
		}
	}
	return nil
}

func (r *RedisRepository) setStatus(ctx context.Context, id string, status domain.Status) error {
	key := redisTokenPrefix + id
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}
	var st storedToken
	if err := json.Unmarshal(raw, &st); err != nil {
		return fmt.Errorf("unmarshal token: %w", err)
	}
	st.Status = string(status)
	payload, err := json.Marshal(&st)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, payload, redis.KeepTTL).Err()
}

func ttlFor(t *domain.RefreshToken) time.Duration {
	ttl := time.Until(t.ExpiresAt)
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func toStored(t *domain.RefreshToken) *storedToken {
	return &storedToken{
		ID:          t.ID,
		SessionID:   t.SessionID,
		AccountID:   t.AccountID,
		Scopes:      t.Scopes,
		TokenHash:   t.TokenHash,
		Status:      string(t.Status),
		SuccessorID: t.SuccessorID,
		IssuedAt:    t.IssuedAt,
		ExpiresAt:   t.ExpiresAt,
	}
}

func fromStored(st *storedToken) *domain.RefreshToken {
	return &domain.RefreshToken{
		ID:          st.ID,
		SessionID:   st.SessionID,
		AccountID:   st.AccountID,
		Scopes:      st.Scopes,
		TokenHash:   st.TokenHash,
		Status:      domain.Status(st.Status),
		SuccessorID: st.SuccessorID,
		IssuedAt:    st.IssuedAt,
		ExpiresAt:   st.ExpiresAt,
	}
}
