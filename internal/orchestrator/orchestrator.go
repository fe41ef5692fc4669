// Package orchestrator composes cache-first retrieval, deep-dive retrieval
// and reranking into one call, and builds the cache-aware Answerer on top.
package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"astro-rag/internal/passage"
	"astro-rag/internal/rerank"
	"astro-rag/internal/retrieval"
	"astro-rag/pkg/logging/logging"
)

// RetrieveRequest names the factors for one orchestrated retrieval.
type RetrieveRequest struct {
	SessionID string   `json:"session_id"`
	Niche     string   `json:"niche"`
	Question  string   `json:"question"`
	Broad     []string `json:"broad_factors"`
	Deep      []string `json:"deep_factors"`
	// Queries are question-driven queries retrieved once, uncached, and
	// merged after the factor passes.
	Queries []string `json:"queries,omitempty"`
	// TopK truncates the reranked list; <= 0 keeps everything.
	TopK int `json:"top_k"`
}

// Stats are the aggregates handed to synthesis alongside the records.
type Stats struct {
	BroadFactorCount int                       `json:"broad_factor_count"`
	DeepFactorCount  int                       `json:"deep_factor_count"`
	TotalFactorsUsed int                       `json:"total_factors_used"`
	TotalPassages    int                       `json:"total_passages"`
	CacheHits        int                       `json:"cache_hits"`
	CacheMisses      int                       `json:"cache_misses"`
	CacheHitRate     float64                   `json:"cache_hit_rate"`
	TimeSavedMS      int64                     `json:"time_saved_ms"`
	RetrievalTimeMS  float64                   `json:"retrieval_time_ms"`
	RerankTimeMS     float64                   `json:"rerank_time_ms"`
	Failures         []retrieval.FactorFailure `json:"failures,omitempty"`
}

// Retrieval is the reranked, deduplicated result.
type Retrieval struct {
	Passages passage.List     `json:"passages"`
	Records  []passage.Record `json:"records"`
	Stats    Stats            `json:"stats"`
}

type Orchestrator struct {
	coord    *retrieval.Coordinator
	reranker *rerank.Reranker
	logger   *zap.Logger
}

// New wires a coordinator and reranker. A nil reranker uses default weights.
func New(coord *retrieval.Coordinator, reranker *rerank.Reranker, logger *zap.Logger) *Orchestrator {
	logger = logging.Or(logger)
	if reranker == nil {
		reranker = rerank.New(rerank.Weights{}, logger)
	}
	return &Orchestrator{coord: coord, reranker: reranker, logger: logger.Named("orchestrator")}
}

// Coordinator exposes the underlying coordinator for stats reporting.
func (o *Orchestrator) Coordinator() *retrieval.Coordinator { return o.coord }

// Retrieve runs the broad and deep passes, merges them by text fingerprint
// and reranks the result against the question. It never fails; missing
// passages show up as a shorter list and in Stats.Failures.
func (o *Orchestrator) Retrieve(ctx context.Context, req RetrieveRequest) Retrieval {
	ms := o.coord.RetrieveMultiStage(ctx, req.SessionID, req.Niche, req.Question, req.Broad, req.Deep)
	var extra passage.List
	if len(req.Queries) > 0 {
		extra = o.coord.RetrieveQueries(ctx, req.Queries)
	}
	return o.finish(req, ms, extra)
}

func (o *Orchestrator) finish(req RetrieveRequest, ms retrieval.MultiStageResult, extra passage.List) Retrieval {
	merged := ms.Passages
	if len(extra) > 0 {
		merged = passage.Dedupe(merged, extra)
	}

	start := time.Now()
	ranked := o.reranker.Rerank(merged, req.Question, rerank.Options{TopK: req.TopK})
	rerankMS := float64(time.Since(start).Microseconds()) / 1000

	st := Stats{
		BroadFactorCount: ms.BroadFactorCount,
		DeepFactorCount:  ms.DeepFactorCount,
		TotalFactorsUsed: ms.TotalFactorsUsed,
		TotalPassages:    len(merged),
		CacheHits:        ms.Broad.CacheHits,
		CacheMisses:      ms.Broad.CacheMisses,
		CacheHitRate:     ms.CacheHitRate,
		TimeSavedMS:      ms.TimeSavedMS,
		RetrievalTimeMS:  ms.RetrievalTimeMS,
		RerankTimeMS:     rerankMS,
		Failures:         ms.Broad.Failures,
	}
	o.logger.Info("orchestrated retrieval",
		zap.String("session_id", req.SessionID),
		zap.String("niche", req.Niche),
		zap.Int("broad_factors", st.BroadFactorCount),
		zap.Int("deep_factors", st.DeepFactorCount),
		zap.Int("passages", len(ranked)),
		zap.Float64("cache_hit_rate", st.CacheHitRate),
		zap.Float64("latency_ms", st.RetrievalTimeMS+rerankMS),
	)
	return Retrieval{Passages: ranked, Records: ranked.Records(), Stats: st}
}
