package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"astro-rag/internal/cache"
	"astro-rag/internal/metrics"
	"astro-rag/internal/niche"
	"astro-rag/internal/passage"
	"astro-rag/internal/pool"
	"astro-rag/internal/query"
	"astro-rag/pkg/logging/logging"
)

const (
	DefaultTaskTimeout = 20 * time.Second
	// EstimatedRetrievalCost is the saving credited for every cache hit.
	EstimatedRetrievalCost = 1200 * time.Millisecond
)

// FailureReason explains why a factor contributed no fresh passages.
type FailureReason string

const (
	ReasonNone           FailureReason = ""
	ReasonEmbedFailed    FailureReason = "embed_failed"
	ReasonRetrieveFailed FailureReason = "retrieve_failed"
	ReasonTimeout        FailureReason = "timeout"
	ReasonPanic          FailureReason = "panic"
	ReasonEmpty          FailureReason = "empty"
)

type Config struct {
	Width       int           // pool width (default: 8)
	TaskTimeout time.Duration // per-factor deadline (default: 20s)
}

// Coordinator is the cache-first parallel retriever.
type Coordinator struct {
	cache     *cache.Manager
	retriever Retriever
	embedder  Embedder
	catalog   *niche.Catalog
	cfg       Config
	logger    *zap.Logger
	stats     counters
}

// NewCoordinator wires the collaborators. embedder may be nil when the
// retriever does its own embedding; catalog nil means niche.Default().
func NewCoordinator(mgr *cache.Manager, retriever Retriever, embedder Embedder, catalog *niche.Catalog, cfg Config, logger *zap.Logger) *Coordinator {
	if cfg.Width <= 0 {
		cfg.Width = pool.DefaultWidth
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = DefaultTaskTimeout
	}
	if catalog == nil {
		catalog = niche.Default()
	}
	return &Coordinator{
		cache:     mgr,
		retriever: retriever,
		embedder:  embedder,
		catalog:   catalog,
		cfg:       cfg,
		logger:    logging.Or(logger).Named("retrieval"),
	}
}

// FactorFailure records a factor that produced no fresh passages.
type FactorFailure struct {
	Factor string        `json:"factor"`
	Reason FailureReason `json:"reason"`
	Error  string        `json:"error,omitempty"`
}

// Result is the outcome of one cache-first retrieval.
type Result struct {
	AllPassages     passage.List    `json:"all_passages"`
	CachedPassages  passage.List    `json:"cached_passages"`
	FreshPassages   passage.List    `json:"fresh_passages"`
	CacheHitRate    float64         `json:"cache_hit_rate"`
	CacheHits       int             `json:"cache_hits"`
	CacheMisses     int             `json:"cache_misses"`
	TimeSavedMS     int64           `json:"time_saved_ms"`
	RetrievalTimeMS float64         `json:"retrieval_time_ms"`
	Failures        []FactorFailure `json:"failures,omitempty"`
}

type taskResult struct {
	factor   string
	passages passage.List
	reason   FailureReason
	err      error
}

// RetrieveWithCache reads every factor from the cache, then fetches the
// misses concurrently and caches what comes back. It never fails: a factor
// that cannot be fetched contributes zero passages and is logged.
func (c *Coordinator) RetrieveWithCache(ctx context.Context, sessionID, nicheName string, factors []string) Result {
	start := time.Now()
	factors = uniqueFactors(factors)
	log := c.logger.With(zap.String("session_id", sessionID), zap.String("niche", nicheName))

	res := Result{CachedPassages: passage.List{}, FreshPassages: passage.List{}}
	// cache pass first, sequential
	var missing []string
	for _, f := range factors {
		key := cache.FactorKey{SessionID: sessionID, Niche: nicheName, Factor: f}.String()
		var cached passage.List
		if c.cache.Get(ctx, key, &cached) && len(cached) > 0 {
			res.CachedPassages = append(res.CachedPassages, cached...)
			continue
		}
		missing = append(missing, f)
	}

	res.CacheHits = len(factors) - len(missing)
	res.CacheMisses = len(missing)
	if len(factors) > 0 {
		res.CacheHitRate = float64(res.CacheHits) / float64(len(factors))
	}
	res.TimeSavedMS = int64(res.CacheHits) * EstimatedRetrievalCost.Milliseconds()
	c.stats.hits.Add(int64(res.CacheHits))
	c.stats.misses.Add(int64(res.CacheMisses))
	c.stats.timeSavedMS.Add(res.TimeSavedMS)

	if len(missing) > 0 {
		ttl := c.catalog.CacheTTL(nicheName)
		results := pool.Collect(ctx, c.cfg.Width, missing, func(ctx context.Context, factor string) taskResult {
			return c.fetchFactor(ctx, sessionID, nicheName, factor, ttl)
		})
		for _, r := range results {
			metrics.FactorRetrievalsTotal.WithLabelValues(outcome(r.reason)).Inc()
			if r.reason != ReasonNone {
				log.Warn("factor retrieval failed",
					zap.String("factor", r.factor),
					zap.String("reason", string(r.reason)),
					zap.Error(r.err),
				)
				f := FactorFailure{Factor: r.factor, Reason: r.reason}
				if r.err != nil {
					f.Error = r.err.Error()
				}
				res.Failures = append(res.Failures, f)
				continue
			}
			res.FreshPassages = append(res.FreshPassages, r.passages...)
		}
		if len(results) < len(missing) {
			log.Warn("retrieval cancelled before every factor ran",
				zap.Int("started", len(results)),
				zap.Int("missing", len(missing)),
				zap.Error(ctx.Err()),
			)
		}
	}

	res.AllPassages = make(passage.List, 0, len(res.CachedPassages)+len(res.FreshPassages))
	res.AllPassages = append(res.AllPassages, res.CachedPassages...)
	res.AllPassages = append(res.AllPassages, res.FreshPassages...)

	elapsed := time.Since(start)
	res.RetrievalTimeMS = float64(elapsed.Microseconds()) / 1000
	metrics.RetrievalDurationSeconds.WithLabelValues("broad").Observe(elapsed.Seconds())
	log.Info("cache-first retrieval complete",
		zap.Int("factors", len(factors)),
		zap.Int("cache_hits", res.CacheHits),
		zap.Int("cache_misses", res.CacheMisses),
		zap.Int("passages", len(res.AllPassages)),
		zap.Int64("time_saved_ms", res.TimeSavedMS),
		zap.Float64("latency_ms", res.RetrievalTimeMS),
	)
	return res
}

// fetchFactor runs one pool task: query, embed, retrieve, cache.
func (c *Coordinator) fetchFactor(ctx context.Context, sessionID, nicheName, factor string, ttl time.Duration) (res taskResult) {
	res.factor = factor
	defer func() {
		if r := recover(); r != nil {
			res = taskResult{factor: factor, reason: ReasonPanic, err: fmt.Errorf("panic: %v", r)}
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.TaskTimeout)
	defer cancel()

	if c.retriever == nil {
		return taskResult{factor: factor, reason: ReasonRetrieveFailed, err: ErrNoRetriever}
	}
	passages, reason, err := c.search(ctx, []string{query.ForFactor(factor)})
	if reason != ReasonNone {
		return taskResult{factor: factor, reason: reason, err: err}
	}
	if len(passages) == 0 {
		return taskResult{factor: factor, reason: ReasonEmpty}
	}

	// tag passages with their factor
	for i := range passages {
		if passages[i].Factor == "" {
			passages[i].Factor = factor
		}
	}
	key := cache.FactorKey{SessionID: sessionID, Niche: nicheName, Factor: factor}.String()
	if err := c.cache.Set(ctx, key, passages, ttl); err != nil {
		c.logger.Error("factor passages not cacheable", zap.String("factor", factor), zap.Error(err))
	}
	return taskResult{factor: factor, passages: passages}
}

type searchResult struct {
	passages passage.List
	reason   FailureReason
	err      error
}

// search embeds texts and retrieves passages for them, returning by the
// ctx deadline even when a collaborator ignores ctx. A late result is
// dropped.
func (c *Coordinator) search(ctx context.Context, texts []string) (passage.List, FailureReason, error) {
	done := make(chan searchResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- searchResult{reason: ReasonPanic, err: fmt.Errorf("panic: %v", r)}
			}
		}()
		queries, err := Embed(ctx, c.embedder, texts)
		if err != nil {
			done <- searchResult{reason: ReasonEmbedFailed, err: err}
			return
		}
		c.stats.ragCalls.Inc()
		passages, err := c.retriever.RetrievePassages(ctx, queries)
		if err != nil {
			done <- searchResult{reason: ReasonRetrieveFailed, err: err}
			return
		}
		done <- searchResult{passages: passages}
	}()

	select {
	case r := <-done:
		if r.reason == ReasonEmbedFailed || r.reason == ReasonRetrieveFailed {
			r.reason = failure(ctx, r.reason)
		}
		return r.passages, r.reason, r.err
	case <-ctx.Done():
		return nil, failure(ctx, ReasonRetrieveFailed), ctx.Err()
	}
}

// failure reports a timeout instead of reason when the task deadline passed.
func failure(ctx context.Context, reason FailureReason) FailureReason {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ReasonTimeout
	}
	return reason
}

func outcome(r FailureReason) string {
	if r == ReasonNone {
		return "success"
	}
	return string(r)
}

func uniqueFactors(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, f := range in {
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
