package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultRedisKey is the key used when none is configured.
const DefaultRedisKey = "cryptolab:session:" + TokenKey

// RedisStore keeps the token under a single Redis key, so several relay
// processes can share one login.
type RedisStore struct {
	client redis.Cmdable
	owned  *redis.Client
	key    string
	ttl    time.Duration
}

// RedisOptions configures [NewRedisStore].
type RedisOptions struct {
	Addr     string
	Password string
	DB       int

	// Key defaults to [DefaultRedisKey].
	Key string

	// TTL expires the key; zero keeps it until cleared. Set it from the
	// login response's expires_in so a stale token disappears on its own.
	TTL time.Duration
}

// NewRedisStore connects to Redis and verifies the connection with PING.
// The caller must Close the store.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	c := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}
	s := NewRedisStoreWithClient(c, opts.Key, opts.TTL)
	s.owned = c
	return s, nil
}

// NewRedisStoreWithClient wraps an existing client. Close does not close it.
func NewRedisStoreWithClient(client redis.Cmdable, key string, ttl time.Duration) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key, ttl: ttl}
}

// Key returns the Redis key the token is stored under.
func (r *RedisStore) Key() string {
	return r.key
}

// Token implements [Store].
func (r *RedisStore) Token(ctx context.Context) (string, error) {
	val, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", r.key, err)
	}
	return val, nil
}

// SetToken implements [Store].
func (r *RedisStore) SetToken(ctx context.Context, token string) error {
	if err := r.client.Set(ctx, r.key, token, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}

// Clear implements [Store].
func (r *RedisStore) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", r.key, err)
	}
	return nil
}

// Close releases the connection opened by [NewRedisStore].
func (r *RedisStore) Close() error {
	if r.owned == nil {
		return nil
	}
	return r.owned.Close()
}
