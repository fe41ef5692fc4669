package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnserializable marks a value that cannot be JSON-encoded for caching.
	// It is the one cache failure surfaced to callers.
	ErrUnserializable = errors.New("cache: value is not serializable")

	// ErrUnavailable is returned by a Store whose backend cannot be reached.
	ErrUnavailable = errors.New("cache: backend unavailable")
)

// Store is the key/value backing store behind the Manager.
// Implemented by the in-process map and by the redis and valkey clients.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value for ttl. A ttl <= 0 removes the key.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	// Keys lists live keys starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// Pinger is implemented by networked stores.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Sweeper is implemented by stores that hold expired entries until read.
type Sweeper interface {
	CleanupExpired() int
}

// Sizer reports the number of entries currently held.
type Sizer interface {
	Len() int
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendValkey = "valkey"
)
