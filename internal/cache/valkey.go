package cache

import (
	"context"
	"fmt"
	"time"

	valkeylib "github.com/valkey-io/valkey-go"
)

// ValkeyConfig configures the valkey Store.
type ValkeyConfig struct {
	Address     string
	Password    string
	DB          int
	Prefix      string
	DialTimeout time.Duration
}

// ValkeyStore implements Store on a valkey (or Redis-compatible) server.
type ValkeyStore struct {
	inner  valkeylib.Client
	prefix string
}

// NewValkeyStore connects and pings the server; an unreachable server is an error.
func NewValkeyStore(ctx context.Context, cfg ValkeyConfig) (*ValkeyStore, error) {
	opts := valkeylib.ClientOption{
		InitAddress:  []string{cfg.Address},
		SelectDB:     cfg.DB,
		DisableCache: true,
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DialTimeout > 0 {
		opts.Dialer.Timeout = cfg.DialTimeout
	}

	inner, err := valkeylib.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	s := &ValkeyStore{inner: inner, prefix: cfg.Prefix}
	if err := s.Ping(ctx); err != nil {
		inner.Close()
		return nil, fmt.Errorf("failed to ping valkey: %w", err)
	}
	return s, nil
}

func (s *ValkeyStore) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

func (s *ValkeyStore) unkey(k string) string {
	if s.prefix == "" || len(k) <= len(s.prefix)+1 {
		return k
	}
	return k[len(s.prefix)+1:]
}

func (s *ValkeyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	cmd := s.inner.B().Get().Key(s.key(key)).Build()
	data, err := s.inner.Do(ctx, cmd).AsBytes()
	if err != nil {
		if valkeylib.IsValkeyNil(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("valkey get failed: %w", err)
	}
	return data, true, nil
}

func (s *ValkeyStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return s.Delete(ctx, key)
	}
	cmd := s.inner.B().Set().
		Key(s.key(key)).
		Value(string(value)).
		Ex(ttl).
		Build()
	if err := s.inner.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("valkey set failed: %w", err)
	}
	return nil
}

func (s *ValkeyStore) Exists(ctx context.Context, key string) (bool, error) {
	cmd := s.inner.B().Exists().Key(s.key(key)).Build()
	count, err := s.inner.Do(ctx, cmd).AsInt64()
	if err != nil {
		return false, fmt.Errorf("valkey exists failed: %w", err)
	}
	return count > 0, nil
}

func (s *ValkeyStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	cmd := s.inner.B().Del().Key(full...).Build()
	if err := s.inner.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("valkey del failed: %w", err)
	}
	return nil
}

func (s *ValkeyStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	match := escapeGlob(s.key(prefix)) + "*"
	var (
		cursor uint64
		keys   []string
	)
	for {
		cmd := s.inner.B().Scan().Cursor(cursor).Match(match).Count(scanBatch).Build()
		entry, err := s.inner.Do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, fmt.Errorf("valkey scan failed: %w", err)
		}
		for _, k := range entry.Elements {
			keys = append(keys, s.unkey(k))
		}
		cursor = entry.Cursor
		if cursor == 0 {
			return keys, nil
		}
	}
}

func (s *ValkeyStore) Ping(ctx context.Context) error {
	return s.inner.Do(ctx, s.inner.B().Ping().Build()).Error()
}

func (s *ValkeyStore) Close() error {
	s.inner.Close()
	return nil
}
