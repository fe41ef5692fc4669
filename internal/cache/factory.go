package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Config struct {
	Backend  string // "redis", "valkey" or "memory"
	Addr     string
	Password string
	DB       int
	Prefix   string

	DialTimeout time.Duration // connect and ping budget (default 5s)
	OpTimeout   time.Duration // per-command read/write timeout (default 5s)

	// SweepInterval is handed to the memory store; see MemoryConfig.
	SweepInterval time.Duration
}

// Open builds the configured Store. A networked backend that cannot be
// reached falls back to the in-process store; the fallback is logged once
// here and never again per call. The returned name is the backend in use.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (Store, string) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dial := cfg.DialTimeout
	if dial <= 0 {
		dial = 5 * time.Second
	}
	op := cfg.OpTimeout
	if op <= 0 {
		op = 5 * time.Second
	}

	switch cfg.Backend {
	case BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:         cfg.Addr,
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  dial,
			ReadTimeout:  op,
			WriteTimeout: op,
		})
		pingCtx, cancel := context.WithTimeout(ctx, dial)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			logger.Info("redis connection established", zap.String("addr", cfg.Addr))
			return NewLoggingStore(NewRedisStore(client, RedisConfig{Prefix: cfg.Prefix}), BackendRedis), BackendRedis
		}
		_ = client.Close()
		logger.Warn("redis unavailable, falling back to in-memory cache",
			zap.String("addr", cfg.Addr), zap.Error(err))

	case BackendValkey:
		pingCtx, cancel := context.WithTimeout(ctx, dial)
		store, err := NewValkeyStore(pingCtx, ValkeyConfig{
			Address:     cfg.Addr,
			Password:    cfg.Password,
			DB:          cfg.DB,
			Prefix:      cfg.Prefix,
			DialTimeout: dial,
		})
		cancel()
		if err == nil {
			logger.Info("valkey connection established", zap.String("addr", cfg.Addr))
			return NewLoggingStore(store, BackendValkey), BackendValkey
		}
		logger.Warn("valkey unavailable, falling back to in-memory cache",
			zap.String("addr", cfg.Addr), zap.Error(err))

	case BackendMemory, "":
	default:
		logger.Warn("unknown cache backend, using in-memory cache", zap.String("backend", cfg.Backend))
	}

	mem := NewMemoryStore(MemoryConfig{SweepInterval: cfg.SweepInterval})
	return NewLoggingStore(mem, BackendMemory), BackendMemory
}
