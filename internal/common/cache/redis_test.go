package cache_test

import (
	"context"
	"testing"
	"time"

	"examgrader/internal/common/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := cache.NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	if err != nil {
		t.Fatalf("new cache failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCacheGetMissingKey(t *testing.T) {
	c, _ := newTestCache(t)
	got, err := c.Get(context.Background(), "missing")
	if err != nil || got != "" {
		t.Fatalf("expected empty miss, got %q, %v", got, err)
	}
}

func TestRedisCacheSetExpires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if n, _ := c.Exists(ctx, "k"); n != 1 {
		t.Fatalf("expected key to exist")
	}
	mr.FastForward(2 * time.Minute)
	if n, _ := c.Exists(ctx, "k"); n != 0 {
		t.Fatalf("expected key to expire")
	}
}

func TestRedisCacheLockOwnership(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	ok, err := c.TryLock(ctx, "lock", "owner-a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected first lock to succeed: %v", err)
	}
	ok, err = c.TryLock(ctx, "lock", "owner-b", time.Minute)
	if err != nil || ok {
		t.Fatalf("expected second lock to fail: %v", err)
	}
	if err := c.Unlock(ctx, "lock", "owner-b"); err != nil {
		t.Fatalf("foreign unlock failed: %v", err)
	}
	if n, _ := c.Exists(ctx, "lock"); n != 1 {
		t.Fatalf("foreign unlock must not release the lock")
	}
	if err := c.Unlock(ctx, "lock", "owner-a"); err != nil {
		t.Fatalf("unlock failed: %v", err)
	}
	if n, _ := c.Exists(ctx, "lock"); n != 0 {
		t.Fatalf("expected lock released")
	}
}

func TestJitterTTL(t *testing.T) {
	ttl := 10 * time.Second
	for i := 0; i < 50; i++ {
		got := cache.JitterTTL(ttl)
		if got > ttl || got < 9*time.Second {
			t.Fatalf("jitter out of range: %v", got)
		}
	}
	if cache.JitterTTL(0) != 0 {
		t.Fatalf("zero ttl must stay zero")
	}
}
