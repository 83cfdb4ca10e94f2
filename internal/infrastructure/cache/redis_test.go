package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestCache(t *testing.T) *RedisIdempotencyCache {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	c := NewRedisIdempotencyCache(addr, os.Getenv("REDIS_PASSWORD"), 0, time.Minute)
	if err := c.Ping(context.Background()); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSetKeepsFirstID(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	key := "test-" + uuid.NewString()

	if _, ok := c.Get(ctx, key); ok {
		t.Fatalf("expected miss for fresh key")
	}
	c.Set(ctx, key, "first")
	c.Set(ctx, key, "second")

	id, ok := c.Get(ctx, key)
	if !ok || id != "first" {
		t.Fatalf("expected first id, got %q (hit=%v)", id, ok)
	}
}

func TestUnreachableRedisIsAMiss(t *testing.T) {
	c := NewRedisIdempotencyCache("127.0.0.1:1", "", 0, time.Minute)
	defer c.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	c.Set(ctx, "k", "id")
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatalf("unreachable redis must behave as a cache miss")
	}
}
