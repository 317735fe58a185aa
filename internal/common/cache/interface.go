package cache

import (
	"context"
	"time"
)

// Cache defines the cache operations used by the grader.
type Cache interface {
	BasicOps
	LockOps

	// Ping verifies the cache connection is alive
	Ping(ctx context.Context) error

	// Close closes the cache connection
	Close() error
}

// BasicOps defines basic key-value operations
type BasicOps interface {
	// Get retrieves the value for the given key; a missing key yields "" and nil.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a key-value pair; ttl 0 means no expiry.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Del deletes one or more keys
	Del(ctx context.Context, keys ...string) error

	// Exists returns how many of keys exist
	Exists(ctx context.Context, keys ...string) (int64, error)
}

// LockOps defines owner-aware distributed lock operations.
type LockOps interface {
	// TryLock sets key to token if absent. Returns false when held by someone else.
	TryLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)

	// Unlock releases key only if it still holds token.
	Unlock(ctx context.Context, key, token string) error
}
