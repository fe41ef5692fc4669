// Package preload warms the per-factor cache for a session before the first
// question arrives.
package preload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"astro-rag/internal/cache"
	"astro-rag/internal/metrics"
	"astro-rag/internal/niche"
	"astro-rag/internal/pool"
	"astro-rag/internal/query"
	"astro-rag/internal/retrieval"
	"astro-rag/pkg/logging/logging"
)

const (
	DefaultBatchSize   = 10
	DefaultMaxParallel = 8
	DefaultTimeout     = 180 * time.Second
	DefaultThreshold   = 0.8
)

// Report statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusTimeout = "timeout"
)

var ErrNoFactors = errors.New("no relevant factors found")

type Config struct {
	BatchSize   int
	MaxParallel int
	Timeout     time.Duration
	// Threshold is the cached fraction at which a niche counts as loaded.
	Threshold float64
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.MaxParallel <= 0 {
		c.MaxParallel = DefaultMaxParallel
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Threshold <= 0 || c.Threshold > 1 {
		c.Threshold = DefaultThreshold
	}
	return c
}

// ProgressFunc receives a completion percentage and a short message.
type ProgressFunc func(percent float64, message string)

type Report struct {
	Status           string    `json:"status"`
	Error            string    `json:"error,omitempty"`
	RunID            string    `json:"run_id"`
	SessionID        string    `json:"session_id"`
	Niche            string    `json:"niche"`
	FactorsProcessed int       `json:"factors_processed"`
	PassagesCached   int       `json:"passages_cached"`
	TimeTakenSeconds float64   `json:"time_taken_seconds"`
	CacheKeys        []string  `json:"cache_keys"`
	Timestamp        time.Time `json:"timestamp"`
}

type Status struct {
	IsLoaded        bool    `json:"is_loaded"`
	FactorsCached   int     `json:"factors_cached"`
	TotalFactors    int     `json:"total_factors"`
	CoveragePercent float64 `json:"coverage_percent"`
}

type Preloader struct {
	cache     *cache.Manager
	retriever retrieval.Retriever
	embedder  retrieval.Embedder
	catalog   *niche.Catalog
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time
}

// New builds a preloader. embedder may be nil; catalog nil means
// niche.Default().
func New(mgr *cache.Manager, retriever retrieval.Retriever, embedder retrieval.Embedder, catalog *niche.Catalog, cfg Config, logger *zap.Logger) *Preloader {
	if catalog == nil {
		catalog = niche.Default()
	}
	return &Preloader{
		cache:     mgr,
		retriever: retriever,
		embedder:  embedder,
		catalog:   catalog,
		cfg:       cfg.withDefaults(),
		logger:    logging.Or(logger).Named("preload"),
		now:       time.Now,
	}
}

// Preload fetches and caches passages for every niche-relevant factor of
// chart. Failing factors and batches are logged and skipped; the report
// carries status error only when the chart has no relevant factors.
func (p *Preloader) Preload(ctx context.Context, sessionID, nicheName string, chart map[string]any, progress ProgressFunc) Report {
	start := p.now()
	nicheName = p.canonical(nicheName)
	if progress == nil {
		progress = func(float64, string) {}
	}
	rep := Report{
		RunID:     uuid.NewString(),
		SessionID: sessionID,
		Niche:     nicheName,
		CacheKeys: []string{},
	}
	log := p.logger.With(zap.String("run_id", rep.RunID), zap.String("session_id", sessionID), zap.String("niche", nicheName))

	progress(5, "Analyzing chart factors...")
	factors := p.Factors(nicheName, chart)
	if len(factors) == 0 {
		log.Warn("no factors to preload")
		rep.Status = StatusError
		rep.Error = ErrNoFactors.Error()
		rep.Timestamp = p.now().UTC()
		return rep
	}
	log.Info("preload started", zap.Int("factors", len(factors)))

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	ttl := p.catalog.CacheTTL(nicheName)
	size := p.cfg.BatchSize
	batches := (len(factors) + size - 1) / size

	rep.Status = StatusSuccess
	for i := 0; i < len(factors); i += size {
		if ctx.Err() != nil {
			rep.Status = StatusTimeout
			log.Warn("preload stopped early", zap.Int("factors_processed", rep.FactorsProcessed), zap.Error(ctx.Err()))
			break
		}
		batch := factors[i:min(i+size, len(factors))]
		n := i/size + 1
		progress(10+float64(i)/float64(len(factors))*85, fmt.Sprintf("Processing batch %d/%d (%d factors)...", n, batches, len(batch)))

		results := pool.Collect(ctx, min(len(batch), p.cfg.MaxParallel), batch, func(ctx context.Context, f query.Factor) factorResult {
			return p.loadFactor(ctx, sessionID, nicheName, f, ttl)
		})
		cached := 0
		for _, r := range results {
			if r.err != nil {
				log.Warn("factor preload failed", zap.String("factor", r.factor), zap.Error(r.err))
				continue
			}
			if r.key != "" {
				rep.CacheKeys = append(rep.CacheKeys, r.key)
				cached += r.passages
			}
		}
		// skipped factors don't count
		rep.FactorsProcessed += len(results)
		rep.PassagesCached += cached
		log.Debug("batch cached", zap.Int("batch", n), zap.Int("passages", cached))
		if ctx.Err() != nil || len(results) < len(batch) {
			rep.Status = StatusTimeout
			log.Warn("preload stopped early", zap.Int("factors_processed", rep.FactorsProcessed), zap.Error(ctx.Err()))
			break
		}
	}

	progress(100, "Pre-loading complete!")
	rep.TimeTakenSeconds = roundTo(p.now().Sub(start).Seconds(), 2)
	rep.Timestamp = p.now().UTC()
	log.Info("preload finished",
		zap.String("status", rep.Status),
		zap.Int("factors_processed", rep.FactorsProcessed),
		zap.Int("passages", rep.PassagesCached),
		zap.Float64("latency_ms", float64(p.now().Sub(start).Milliseconds())),
	)
	return rep
}

type factorResult struct {
	factor   string
	key      string
	passages int
	err      error
}

func (p *Preloader) loadFactor(ctx context.Context, sessionID, nicheName string, f query.Factor, ttl time.Duration) (res factorResult) {
	res.factor = f.Name
	defer func() {
		if r := recover(); r != nil {
			res = factorResult{factor: f.Name, err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if p.retriever == nil {
		return factorResult{factor: f.Name, err: retrieval.ErrNoRetriever}
	}
	texts := query.ForValue(f)
	if len(texts) == 0 {
		return res
	}
	qs, err := retrieval.Embed(ctx, p.embedder, texts)
	if err != nil {
		return factorResult{factor: f.Name, err: fmt.Errorf("embed: %w", err)}
	}
	passages, err := p.retriever.RetrievePassages(ctx, qs)
	if err != nil {
		return factorResult{factor: f.Name, err: fmt.Errorf("retrieve: %w", err)}
	}
	if len(passages) == 0 {
		return res
	}
	for i := range passages {
		if passages[i].Factor == "" {
			passages[i].Factor = f.Name
		}
	}
	key := cache.FactorKey{SessionID: sessionID, Niche: nicheName, Factor: f.Name}.String()
	if err := p.cache.Set(ctx, key, passages, ttl); err != nil {
		return factorResult{factor: f.Name, err: err}
	}
	return factorResult{factor: f.Name, key: key, passages: len(passages)}
}

// Factors lists the niche-relevant factors of chart with their values: D1,
// D9 and D10 factors the chart has, the current dashas, then timing
// pseudo-factors for the love and career niches. An unknown niche uses
// every chart factor.
func (p *Preloader) Factors(nicheName string, chart map[string]any) []query.Factor {
	n, ok := p.catalog.Lookup(nicheName)
	if !ok {
		out := make([]query.Factor, 0, len(chart))
		for _, k := range sortedKeys(chart) {
			out = append(out, query.Factor{Name: k, Value: chart[k], Chart: query.ChartD1})
		}
		return out
	}

	var out []query.Factor
	seen := map[string]struct{}{}
	add := func(name string, v any, label string) {
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		out = append(out, query.Factor{Name: name, Value: v, Chart: label})
	}
	for _, set := range []struct {
		names []string
		label string
	}{
		{n.D1Factors, query.ChartD1},
		{n.D9Factors, query.ChartD9},
		{n.D10Factors, query.ChartD10},
	} {
		for _, name := range set.names {
			if v, ok := chart[name]; ok {
				add(name, v, set.label)
			}
		}
	}
	if _, ok := chart["current_mahadasha"]; ok {
		add("current_dashas", query.CurrentDashas{
			Mahadasha:  stringValue(chart["current_mahadasha"]),
			Antardasha: stringValue(chart["current_antardasha"]),
		}, "Vimshottari")
	}
	if n.Name == niche.Love || n.Name == niche.Career {
		for _, name := range n.TimingFactors(chart) {
			add(name, query.TimingPlaceholder, query.ChartTiming)
		}
	}
	return out
}

// canonical maps a known niche to its catalog name so cache keys match the
// ones the retrieval path builds.
func (p *Preloader) canonical(name string) string {
	if n, ok := p.catalog.Lookup(name); ok {
		return n.Name
	}
	return name
}

// Status reports how many of the niche's factors are cached for session.
func (p *Preloader) Status(ctx context.Context, sessionID, nicheName string) Status {
	nicheName = p.canonical(nicheName)
	expected := p.catalog.Factors(nicheName)
	st := Status{TotalFactors: len(expected)}
	for _, f := range expected {
		if p.cache.Exists(ctx, cache.FactorKey{SessionID: sessionID, Niche: nicheName, Factor: f}.String()) {
			st.FactorsCached++
		}
	}
	if st.TotalFactors > 0 {
		ratio := float64(st.FactorsCached) / float64(st.TotalFactors)
		st.CoveragePercent = ratio * 100
		metrics.PreloadCoverage.WithLabelValues(cache.NormalizeNiche(nicheName)).Set(ratio)
	}
	st.IsLoaded = st.TotalFactors > 0 && float64(st.FactorsCached) >= float64(st.TotalFactors)*p.cfg.Threshold
	return st
}
