package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"gatekeeper/internal/models"
)

// RedisStore is the production Store backed by Redis. Every call is bounded
// by the configured operation timeout, and write operations are detached from
// request cancellation: an aborted request must still count toward its
// window, otherwise abusive bursts undercount themselves by disconnecting.
type RedisStore struct {
	client    *redis.Client
	opTimeout time.Duration
}

var _ Store = (*RedisStore)(nil)

// incrScript atomically increments a counter and sets its TTL only when the
// increment created the key. INCR followed by a separate EXPIRE would let two
// concurrent first requests race on initialization.
//
// KEYS[1] = counter key
// ARGV[1] = ttl in milliseconds
var incrScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
    redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg models.RedisConfig, opTimeout time.Duration) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{client: client, opTimeout: opTimeout}, nil
}

// NewRedisStoreWithClient wraps an existing client. Used by tests.
func NewRedisStoreWithClient(client *redis.Client, opTimeout time.Duration) *RedisStore {
	return &RedisStore{client: client, opTimeout: opTimeout}
}

func (s *RedisStore) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	// Writes survive request cancellation; see type comment.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opTimeout)
	defer cancel()

	count, err := incrScript.Run(ctx, s.client, []string{key}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, wrapUnavailable("incr", key, err)
	}
	return count, nil
}

func (s *RedisStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opTimeout)
	defer cancel()

	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return wrapUnavailable("set", key, err)
	}
	return nil
}

func (s *RedisStore) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opTimeout)
	defer cancel()

	set, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, wrapUnavailable("setnx", key, err)
	}
	return set, nil
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, wrapUnavailable("exists", key, err)
	}
	return n > 0, nil
}

func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, wrapUnavailable("pttl", key, err)
	}
	// PTTL returns -2 for missing keys and -1 for keys without expiry.
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		return wrapUnavailable("ping", "", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func wrapUnavailable(op, key string, err error) error {
	if key == "" {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
	}
	return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, op, key, err)
}

// IsUnavailable reports whether err stems from an unreachable store.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
