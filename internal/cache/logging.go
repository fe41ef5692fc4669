package cache

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"astro-rag/internal/metrics"
	"astro-rag/pkg/logging/logging"
)

// LoggingStore wraps a Store with debug logging and latency metrics.
type LoggingStore struct {
	inner   Store
	backend string
}

// NewLoggingStore decorates inner; backend labels logs and metrics.
func NewLoggingStore(inner Store, backend string) *LoggingStore {
	return &LoggingStore{inner: inner, backend: backend}
}

// Unwrap returns the decorated store.
func (c *LoggingStore) Unwrap() Store { return c.inner }

func (c *LoggingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	value, ok, err := c.inner.Get(ctx, key)

	result := "miss"
	switch {
	case err != nil:
		result = "error"
	case ok:
		result = "hit"
	}
	c.log(ctx, "store_get", key, start, err, zap.String("cache_result", result))
	return value, ok, err
}

func (c *LoggingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := c.inner.Set(ctx, key, value, ttl)
	c.log(ctx, "store_set", key, start, err, zap.Duration("ttl", ttl), zap.Int("bytes", len(value)))
	return err
}

func (c *LoggingStore) Exists(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	ok, err := c.inner.Exists(ctx, key)
	c.log(ctx, "store_exists", key, start, err, zap.Bool("exists", ok))
	return ok, err
}

func (c *LoggingStore) Delete(ctx context.Context, keys ...string) error {
	start := time.Now()
	err := c.inner.Delete(ctx, keys...)
	c.log(ctx, "store_delete", "", start, err, zap.Int("keys", len(keys)))
	return err
}

func (c *LoggingStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	start := time.Now()
	keys, err := c.inner.Keys(ctx, prefix)
	c.log(ctx, "store_keys", prefix, start, err, zap.Int("matched", len(keys)))
	return keys, err
}

func (c *LoggingStore) Close() error {
	return c.inner.Close()
}

func (c *LoggingStore) log(ctx context.Context, op, key string, start time.Time, err error, extra ...zap.Field) {
	elapsed := time.Since(start)
	metrics.StoreOpDuration.WithLabelValues(c.backend, strings.TrimPrefix(op, "store_")).Observe(elapsed.Seconds())

	fields := []zap.Field{
		zap.String("cache_backend", c.backend),
		zap.Float64("latency_ms", float64(elapsed.Microseconds())/1000.0),
	}
	if key != "" {
		fields = append(fields, zap.String("cache_key", key))
		if parts, ok := parseFactorKey(key); ok {
			fields = append(fields,
				zap.String("session_id", parts.sessionID),
				zap.String("niche", parts.niche),
				zap.String("factor", parts.factor),
			)
		}
	}
	fields = append(fields, extra...)

	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	logging.L(ctx).Debug(op, fields...)
}

type factorKeyParts struct {
	sessionID string
	niche     string
	factor    string
}

// parseFactorKey splits "astro:rag:<session>:<niche>:<factor>".
func parseFactorKey(key string) (factorKeyParts, bool) {
	rest, ok := strings.CutPrefix(key, RAGNamespace+":")
	if !ok {
		return factorKeyParts{}, false
	}
	parts := strings.SplitN(rest, ":", 3)
	if len(parts) != 3 {
		return factorKeyParts{}, false
	}
	return factorKeyParts{sessionID: parts[0], niche: parts[1], factor: parts[2]}, true
}

type unwrapper interface {
	Unwrap() Store
}

// storeAs finds the first store in a decorator chain implementing T.
func storeAs[T any](s Store) (T, bool) {
	for s != nil {
		if t, ok := s.(T); ok {
			return t, true
		}
		u, ok := s.(unwrapper)
		if !ok {
			break
		}
		s = u.Unwrap()
	}
	var zero T
	return zero, false
}
