package retrieval

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"astro-rag/internal/metrics"
	"astro-rag/internal/passage"
	"astro-rag/internal/query"
)

// MultiStageResult merges the broad and deep passes.
type MultiStageResult struct {
	Passages         passage.List `json:"passages"`
	Broad            Result       `json:"broad"`
	DeepPassages     passage.List `json:"deep_passages"`
	BroadFactorCount int          `json:"broad_factor_count"`
	DeepFactorCount  int          `json:"deep_factor_count"`
	TotalFactorsUsed int          `json:"total_factors_used"`
	TotalPassages    int          `json:"total_passages"`
	CacheHitRate     float64      `json:"cache_hit_rate"`
	TimeSavedMS      int64        `json:"time_saved_ms"`
	RetrievalTimeMS  float64      `json:"retrieval_time_ms"`
}

// RetrieveMultiStage runs the cache-first broad pass over broad, then a
// sequential uncached deep pass with question-aware queries over deep, and
// merges both by text fingerprint with broad passages first.
func (c *Coordinator) RetrieveMultiStage(ctx context.Context, sessionID, nicheName, question string, broad, deep []string) MultiStageResult {
	start := time.Now()
	broadRes := c.RetrieveWithCache(ctx, sessionID, nicheName, broad)

	deepStart := time.Now()
	deep = uniqueFactors(deep)
	deepPassages := passage.List{}
	for _, f := range deep {
		if ctx.Err() != nil {
			break
		}
		r := c.deepFactor(ctx, f, question)
		if r.reason != ReasonNone {
			c.logger.Warn("deep retrieval failed",
				zap.String("session_id", sessionID),
				zap.String("factor", f),
				zap.String("reason", string(r.reason)),
				zap.Error(r.err),
			)
			continue
		}
		deepPassages = append(deepPassages, r.passages...)
	}
	metrics.ObserveSince(metrics.RetrievalDurationSeconds.WithLabelValues("deep"), deepStart)

	merged := passage.Dedupe(broadRes.AllPassages, deepPassages)

	used := make(map[string]struct{}, len(broad)+len(deep))
	for _, f := range uniqueFactors(broad) {
		used[f] = struct{}{}
	}
	for _, f := range deep {
		used[f] = struct{}{}
	}

	elapsed := time.Since(start)
	metrics.RetrievalDurationSeconds.WithLabelValues("multi_stage").Observe(elapsed.Seconds())
	return MultiStageResult{
		Passages:         merged,
		Broad:            broadRes,
		DeepPassages:     deepPassages,
		BroadFactorCount: len(uniqueFactors(broad)),
		DeepFactorCount:  len(deep),
		TotalFactorsUsed: len(used),
		TotalPassages:    len(merged),
		CacheHitRate:     broadRes.CacheHitRate,
		TimeSavedMS:      broadRes.TimeSavedMS,
		RetrievalTimeMS:  float64(elapsed.Microseconds()) / 1000,
	}
}

func (c *Coordinator) deepFactor(ctx context.Context, factor, question string) (res taskResult) {
	res.factor = factor
	defer func() {
		if r := recover(); r != nil {
			res = taskResult{factor: factor, reason: ReasonPanic, err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if c.retriever == nil {
		return taskResult{factor: factor, reason: ReasonRetrieveFailed, err: ErrNoRetriever}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.TaskTimeout)
	defer cancel()

	passages, reason, err := c.search(ctx, []string{query.Deep(factor, question)})
	if reason != ReasonNone {
		return taskResult{factor: factor, reason: reason, err: err}
	}
	for i := range passages {
		if passages[i].Factor == "" {
			passages[i].Factor = factor
		}
	}
	return taskResult{factor: factor, passages: passages}
}

// RetrieveQueries sends queries to the retriever in one uncached call. A
// failure is logged and yields no passages.
func (c *Coordinator) RetrieveQueries(ctx context.Context, queries []string) passage.List {
	if len(queries) == 0 || c.retriever == nil {
		return passage.List{}
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.TaskTimeout)
	defer cancel()

	list, reason, err := c.search(ctx, queries)
	if reason != ReasonNone {
		c.logger.Warn("question retrieval failed", zap.String("reason", string(reason)), zap.Error(err))
		return passage.List{}
	}
	return list
}
