package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "mpesa:idem:"
	defaultTTL = 24 * time.Hour
)

// RedisIdempotencyCache maps idempotency keys to transaction ids. Redis errors
// degrade to a cache miss, the transaction store stays authoritative.
type RedisIdempotencyCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisIdempotencyCache(addr, password string, db int, ttl time.Duration) *RedisIdempotencyCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisIdempotencyCacheFromClient(rdb, ttl)
}

func NewRedisIdempotencyCacheFromClient(client *redis.Client, ttl time.Duration) *RedisIdempotencyCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisIdempotencyCache{client: client, ttl: ttl}
}

func (c *RedisIdempotencyCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis PING error: %w", err)
	}
	return nil
}

func (c *RedisIdempotencyCache) Get(ctx context.Context, key string) (string, bool) {
	id, err := c.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		slog.Warn("idempotency cache read failed", "idempotency_key", key, "error", err)
		return "", false
	}
	return id, true
}

// Set stores the first id seen for key. SETNX keeps a concurrent loser from
// overwriting the winner.
func (c *RedisIdempotencyCache) Set(ctx context.Context, key, transactionID string) {
	if err := c.client.SetNX(ctx, keyPrefix+key, transactionID, c.ttl).Err(); err != nil {
		slog.Warn("idempotency cache write failed", "idempotency_key", key, "error", err)
	}
}

func (c *RedisIdempotencyCache) Close() error {
	return c.client.Close()
}
