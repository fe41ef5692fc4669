package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"astro-rag/internal/metrics"
)

// Default TTLs.
const (
	DefaultTTL       = 60 * time.Minute
	DefaultLevel1TTL = 12 * time.Hour
	DefaultLevel2TTL = 3 * time.Hour
)

// Stat levels.
const (
	LevelL1      = "l1"
	LevelL2      = "l2"
	LevelGeneric = "generic"
)

type ManagerConfig struct {
	// Backend is the name reported by Stats and HealthCheck.
	Backend    string
	DefaultTTL time.Duration
	Level1TTL  time.Duration
	Level2TTL  time.Duration
	// Generation is mixed into chart buckets; bump it to retire Level-1 entries.
	Generation string
	Now        func() time.Time
}

// Manager is the two-level cache plus the generic per-factor cache.
// Reads and writes fail open: store errors are counted, logged and
// reported as misses. Only serialization failures reach the caller.
type Manager struct {
	store  Store
	cfg    ManagerConfig
	logger *zap.Logger
	stats  counters
}

// NewManager wraps store. Zero TTLs take the package defaults.
func NewManager(store Store, cfg ManagerConfig, logger *zap.Logger) *Manager {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	if cfg.Level1TTL <= 0 {
		cfg.Level1TTL = DefaultLevel1TTL
	}
	if cfg.Level2TTL <= 0 {
		cfg.Level2TTL = DefaultLevel2TTL
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendMemory
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: store, cfg: cfg, logger: logger.Named("cache")}
}

func (m *Manager) Backend() string { return m.cfg.Backend }

// Generation reports the configured cache generation.
func (m *Manager) Generation() string { return m.cfg.Generation }

// Level1Entry is a bucket-level hit: the passages chosen for a
// structurally similar question and the draft answer produced from them.
type Level1Entry struct {
	PassageIDs  []string        `json:"passage_ids"`
	Passages    json.RawMessage `json:"passages,omitempty"`
	DraftAnswer string          `json:"draft_answer"`
	Timestamp   float64         `json:"timestamp"`
}

type level1Record struct {
	PassageIDs  []string `json:"passage_ids"`
	Passages    any      `json:"passages,omitempty"`
	DraftAnswer string   `json:"draft_answer"`
	Timestamp   float64  `json:"timestamp"`
}

// GetLevel1 looks up the intent+chart bucket layer.
func (m *Manager) GetLevel1(ctx context.Context, intentBucket, chartBucket string) (*Level1Entry, bool) {
	key := Level1Key{IntentBucket: intentBucket, ChartBucket: chartBucket}.String()
	raw, ok := m.read(ctx, LevelL1, key)
	if !ok {
		return nil, false
	}
	var entry Level1Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		m.fail(LevelL1, "decode", key, err)
		return nil, false
	}
	return &entry, true
}

// SetLevel1 stores passage IDs, optional passages and a draft answer for a
// bucket. ttl <= 0 uses the Level-1 default.
func (m *Manager) SetLevel1(ctx context.Context, intentBucket, chartBucket string, passageIDs []string, passages any, draftAnswer string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.cfg.Level1TTL
	}
	if passageIDs == nil {
		passageIDs = []string{}
	}
	rec := level1Record{
		PassageIDs:  passageIDs,
		Passages:    passages,
		DraftAnswer: draftAnswer,
		Timestamp:   float64(m.cfg.Now().UnixMilli()) / 1000,
	}
	key := Level1Key{IntentBucket: intentBucket, ChartBucket: chartBucket}.String()
	return m.write(ctx, LevelL1, key, rec, ttl)
}

// GetLevel2 looks up an exact full response by prompt hash.
func (m *Manager) GetLevel2(ctx context.Context, promptHash string) (string, bool) {
	key := Level2Key{PromptHash: promptHash}.String()
	raw, ok := m.read(ctx, LevelL2, key)
	if !ok {
		return "", false
	}
	var response string
	if err := json.Unmarshal(raw, &response); err != nil {
		m.fail(LevelL2, "decode", key, err)
		return "", false
	}
	return response, true
}

// SetLevel2 stores a full response. ttl <= 0 uses the Level-2 default.
func (m *Manager) SetLevel2(ctx context.Context, promptHash, response string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.cfg.Level2TTL
	}
	return m.write(ctx, LevelL2, Level2Key{PromptHash: promptHash}.String(), response, ttl)
}

// Get decodes the JSON value under key into dst. A decode failure is a miss.
func (m *Manager) Get(ctx context.Context, key string, dst any) bool {
	raw, ok := m.read(ctx, LevelGeneric, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		m.fail(LevelGeneric, "decode", key, err)
		return false
	}
	return true
}

// Set JSON-encodes value under key. ttl <= 0 uses the default TTL. The
// returned error wraps ErrUnserializable; store failures are absorbed.
func (m *Manager) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.cfg.DefaultTTL
	}
	return m.write(ctx, LevelGeneric, key, value, ttl)
}

// GetMany returns the raw JSON of every key found.
func (m *Manager) GetMany(ctx context.Context, keys []string) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		if raw, ok := m.read(ctx, LevelGeneric, k); ok {
			out[k] = raw
		}
	}
	return out
}

// SetMany writes every item with the same ttl. Every value is encoded
// before anything is written, so a serialization failure writes nothing.
func (m *Manager) SetMany(ctx context.Context, items map[string]any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.cfg.DefaultTTL
	}
	encoded := make(map[string][]byte, len(items))
	for k, v := range items {
		b, err := encode(v)
		if err != nil {
			return fmt.Errorf("cache set %q: %w", k, err)
		}
		encoded[k] = b
	}
	for k, b := range encoded {
		m.put(ctx, LevelGeneric, k, b, ttl)
	}
	return nil
}

func (m *Manager) Exists(ctx context.Context, key string) bool {
	ok, err := m.store.Exists(ctx, key)
	if err != nil {
		m.fail(LevelGeneric, "exists", key, err)
		return false
	}
	return ok
}

func (m *Manager) Delete(ctx context.Context, keys ...string) {
	if err := m.store.Delete(ctx, keys...); err != nil {
		m.fail(LevelGeneric, "delete", fmt.Sprint(keys), err)
	}
}

// ClearSession removes every per-factor entry of a session and returns the
// number of keys deleted.
func (m *Manager) ClearSession(ctx context.Context, sessionID string) int {
	prefix := SessionPrefix(sessionID)
	keys, err := m.store.Keys(ctx, prefix)
	if err != nil {
		m.fail(LevelGeneric, "keys", prefix, err)
		return 0
	}
	if len(keys) == 0 {
		return 0
	}
	if err := m.store.Delete(ctx, keys...); err != nil {
		m.fail(LevelGeneric, "delete", prefix, err)
		return 0
	}
	m.logger.Info("cleared session cache entries",
		zap.String("session_id", sessionID), zap.Int("keys", len(keys)))
	return len(keys)
}

// CleanupExpired sweeps the in-process store. Networked stores expire
// keys themselves and report 0.
func (m *Manager) CleanupExpired() int {
	sw, ok := storeAs[Sweeper](m.store)
	if !ok {
		return 0
	}
	n := sw.CleanupExpired()
	if n > 0 {
		m.logger.Info("cleaned up expired cache entries", zap.Int("removed", n))
	}
	return n
}

// Health is a point-in-time cache health report.
type Health struct {
	Healthy   bool      `json:"healthy"`
	Backend   string    `json:"cache_type"`
	Connected *bool     `json:"connected,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthCheck pings networked stores. The in-process store is always healthy.
func (m *Manager) HealthCheck(ctx context.Context) Health {
	h := Health{Healthy: true, Backend: m.cfg.Backend, Timestamp: m.cfg.Now().UTC()}
	p, ok := storeAs[Pinger](m.store)
	if !ok {
		return h
	}
	connected := true
	if err := p.Ping(ctx); err != nil {
		connected = false
		h.Healthy = false
		h.Error = err.Error()
	}
	h.Connected = &connected
	return h
}

func (m *Manager) Close() error {
	return m.store.Close()
}

func (m *Manager) read(ctx context.Context, level, key string) ([]byte, bool) {
	raw, ok, err := m.store.Get(ctx, key)
	switch {
	case err != nil:
		m.fail(level, "get", key, err)
		m.stats.miss(level)
		metrics.CacheRequestsTotal.WithLabelValues(level, "error").Inc()
		return nil, false
	case !ok:
		m.stats.miss(level)
		metrics.CacheRequestsTotal.WithLabelValues(level, "miss").Inc()
		return nil, false
	}
	m.stats.hit(level)
	metrics.CacheRequestsTotal.WithLabelValues(level, "hit").Inc()
	return raw, true
}

func (m *Manager) write(ctx context.Context, level, key string, value any, ttl time.Duration) error {
	b, err := encode(value)
	if err != nil {
		m.stats.errors.Inc()
		return fmt.Errorf("cache set %q: %w", key, err)
	}
	m.put(ctx, level, key, b, ttl)
	return nil
}

func (m *Manager) put(ctx context.Context, level, key string, b []byte, ttl time.Duration) {
	if err := m.store.Set(ctx, key, b, ttl); err != nil {
		m.fail(level, "set", key, err)
		return
	}
	m.stats.sets.Inc()
	metrics.CacheSetsTotal.WithLabelValues(level).Inc()
}

func (m *Manager) fail(level, op, key string, err error) {
	m.stats.errors.Inc()
	m.logger.Warn("cache operation failed",
		zap.String("cache_level", level),
		zap.String("op", op),
		zap.String("cache_key", key),
		zap.Error(err),
	)
}

func encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnserializable, err)
	}
	return b, nil
}
