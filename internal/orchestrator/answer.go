package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"astro-rag/internal/cache"
	"astro-rag/internal/classify"
	"astro-rag/internal/niche"
	"astro-rag/internal/passage"
	"astro-rag/internal/query"
	"astro-rag/pkg/logging/logging"
)

var ErrEmptyQuestion = errors.New("question is required")

const (
	defaultFocusCacheSize  = 128
	defaultMaxBroadFactors = 20
)

type AnswererConfig struct {
	FocusCacheSize  int           // default: 128
	MaxBroadFactors int           // default: 20, further capped by the profile chart limit
	Level1TTL       time.Duration // 0 uses the cache default
	Level2TTL       time.Duration // 0 uses the cache default
}

// Request is one question about one chart.
type Request struct {
	SessionID string         `json:"session_id"`
	Niche     string         `json:"niche"`
	Question  string         `json:"question"`
	Chart     map[string]any `json:"chart"`
	History   []Turn         `json:"history,omitempty"`
	Mode      string         `json:"mode,omitempty"`
}

// Response is the answer plus how it was produced.
type Response struct {
	Answer       string              `json:"response"`
	Niche        string              `json:"niche"`
	Complexity   classify.Complexity `json:"complexity,omitempty"`
	Intent       string              `json:"intent,omitempty"`
	PassagesUsed int                 `json:"passages_used"`
	RAGUsed      bool                `json:"rag_used"`
	Passages     []passage.Record    `json:"passages,omitempty"`
	Queries      []string            `json:"queries,omitempty"`
	ChartFocus   []string            `json:"chart_focus,omitempty"`
	L1Hit        bool                `json:"l1_hit"`
	L2Hit        bool                `json:"l2_hit"`
	Retrieval    *Stats              `json:"retrieval,omitempty"`
	Latencies    map[string]float64  `json:"latencies"`
}

// Answerer runs the full question flow: exact-response cache, classification,
// chart focus, bucket cache, multi-stage retrieval and synthesis.
type Answerer struct {
	catalog *niche.Catalog
	cache   *cache.Manager
	orch    *Orchestrator
	synth   Synthesizer
	focus   *focusBuilder
	cfg     AnswererConfig
	logger  *zap.Logger
}

func NewAnswerer(catalog *niche.Catalog, mgr *cache.Manager, orch *Orchestrator, synth Synthesizer, cfg AnswererConfig, logger *zap.Logger) *Answerer {
	if catalog == nil {
		catalog = niche.Default()
	}
	if cfg.FocusCacheSize <= 0 {
		cfg.FocusCacheSize = defaultFocusCacheSize
	}
	if cfg.MaxBroadFactors <= 0 {
		cfg.MaxBroadFactors = defaultMaxBroadFactors
	}
	return &Answerer{
		catalog: catalog,
		cache:   mgr,
		orch:    orch,
		synth:   synth,
		focus:   newFocusBuilder(cfg.FocusCacheSize),
		cfg:     cfg,
		logger:  logging.Or(logger).Named("answer"),
	}
}

// Answer returns a synthesized answer. Only an empty question or a synthesis
// failure is returned as an error; cache and retrieval problems degrade the
// answer instead.
func (a *Answerer) Answer(ctx context.Context, req Request) (*Response, error) {
	if req.Question == "" {
		return nil, ErrEmptyQuestion
	}
	if req.Mode == "" {
		req.Mode = ModeDraft
	}
	start := time.Now()
	n := a.catalog.Resolve(req.Niche)
	log := a.logger.With(zap.String("session_id", req.SessionID), zap.String("niche", n.Name))
	lat := map[string]float64{}

	promptHash := cache.PromptHash(map[string]any{
		"question": req.Question,
		"niche":    n.Name,
		"chart":    req.Chart,
		"history":  req.History,
		"mode":     req.Mode,
	})
	if answer, ok := a.cache.GetLevel2(ctx, promptHash); ok {
		lat["total_ms"] = sinceMS(start)
		log.Info("answer served from cache", zap.String("cache_level", cache.LevelL2), zap.Float64("latency_ms", lat["total_ms"]))
		return &Response{Answer: answer, Niche: n.Name, L2Hit: true, Latencies: lat}, nil
	}

	pl := a.plan(req, n, lat)
	cls, focus, queries := pl.Classification, pl.ChartFocus, pl.Retrieve.Queries

	step := time.Now()
	intentBucket := cache.IntentBucket(req.Question, n.Name)
	chartBucket := cache.ChartBucket(req.Chart, a.cache.Generation())
	var (
		passages  passage.List
		draftHint string
		stats     *Stats
		l1Hit     bool
	)
	if entry, ok := a.cache.GetLevel1(ctx, intentBucket, chartBucket); ok {
		if cached, ok := decodeLevel1(entry); ok {
			passages, draftHint, l1Hit = cached, entry.DraftAnswer, true
		}
	}
	if !l1Hit {
		res := a.orch.Retrieve(ctx, pl.Retrieve)
		passages, stats = res.Passages, &res.Stats
	}
	lat["retrieval_ms"] = sinceMS(step)

	records := passages.Records()
	step = time.Now()
	answer, err := a.synth.Synthesize(ctx, SynthesisInput{
		Question:   req.Question,
		Niche:      n.Name,
		Complexity: string(cls.Complexity),
		Intent:     cls.Intent,
		Mode:       req.Mode,
		ChartFocus: focus,
		Passages:   records,
		History:    req.History,
		DraftHint:  draftHint,
	})
	lat["synthesis_ms"] = sinceMS(step)
	if err != nil {
		log.Error("synthesis failed", zap.Error(err))
		return nil, fmt.Errorf("answer: %w", err)
	}

	if !l1Hit && len(passages) > 0 {
		if err := a.cache.SetLevel1(ctx, intentBucket, chartBucket, passages.IDs(), passages, answer, a.cfg.Level1TTL); err != nil {
			log.Warn("level-1 cache write skipped", zap.Error(err))
		}
	}
	if err := a.cache.SetLevel2(ctx, promptHash, answer, a.cfg.Level2TTL); err != nil {
		log.Warn("level-2 cache write skipped", zap.Error(err))
	}

	lat["total_ms"] = sinceMS(start)
	log.Info("answered question",
		zap.String("complexity", string(cls.Complexity)),
		zap.String("intent", cls.Intent),
		zap.Bool("l1_hit", l1Hit),
		zap.Int("passages", len(passages)),
		zap.Float64("latency_ms", lat["total_ms"]),
	)
	return &Response{
		Answer:       answer,
		Niche:        n.Name,
		Complexity:   cls.Complexity,
		Intent:       cls.Intent,
		PassagesUsed: len(passages),
		RAGUsed:      len(passages) > 0,
		Passages:     records,
		Queries:      queries,
		ChartFocus:   focus,
		L1Hit:        l1Hit,
		Retrieval:    stats,
		Latencies:    lat,
	}, nil
}

// Plan is what the Answerer would retrieve for a request.
type Plan struct {
	Niche          string          `json:"niche"`
	Classification classify.Result `json:"classification"`
	ChartFocus     []string        `json:"chart_focus"`
	Retrieve       RetrieveRequest `json:"retrieve"`
}

// Retrieve runs classification, factor selection and multi-stage retrieval
// without touching the answer caches or the synthesizer.
func (a *Answerer) Retrieve(ctx context.Context, req Request) (Plan, Retrieval, error) {
	if req.Question == "" {
		return Plan{}, Retrieval{}, ErrEmptyQuestion
	}
	n := a.catalog.Resolve(req.Niche)
	pl := a.plan(req, n, map[string]float64{})
	return pl, a.orch.Retrieve(ctx, pl.Retrieve), nil
}

func (a *Answerer) plan(req Request, n *niche.Niche, lat map[string]float64) Plan {
	step := time.Now()
	cls := classify.Classify(req.Question)
	prof := classify.ProfileFor(cls.Complexity)
	lat["classification_ms"] = sinceMS(step)

	step = time.Now()
	focus := a.focus.Build(req.Chart, n.Key(), n.PriorityKeys, prof.ChartLimit)
	lat["chart_focus_ms"] = sinceMS(step)

	step = time.Now()
	timingQ := niche.IsTimingQuestion(req.Question)
	timing := a.catalog.TimingFactors(n.Name, req.Chart)
	var pseudo []string
	if timingQ {
		pseudo = timing
	}
	broad := selectFactors(a.catalog.AllFactorsWithTiming(n.Name, req.Question, req.Chart), req.Chart, pseudo, min(prof.ChartLimit, a.cfg.MaxBroadFactors))
	deep := broad[:min(prof.QueryCount, len(broad))]
	queries := query.ForQuestion(query.QuestionInput{
		Question:      req.Question,
		NicheKey:      nicheKey(n),
		Intent:        cls.Intent,
		Chart:         req.Chart,
		PriorityKeys:  n.PriorityKeys,
		TimingFactors: timing,
		Timing:        timingQ,
		Max:           prof.QueryCount,
	})
	lat["query_generation_ms"] = sinceMS(step)

	return Plan{
		Niche:          n.Name,
		Classification: cls,
		ChartFocus:     focus,
		Retrieve: RetrieveRequest{
			SessionID: req.SessionID,
			Niche:     n.Name,
			Question:  req.Question,
			Broad:     broad,
			Deep:      deep,
			Queries:   queries,
			TopK:      prof.PassageLimit,
		},
	}
}

// selectFactors keeps factors the chart has a value for, plus the given
// timing pseudo-factors, up to limit.
func selectFactors(all []string, chart map[string]any, timing []string, limit int) []string {
	isTiming := make(map[string]struct{}, len(timing))
	for _, f := range timing {
		isTiming[f] = struct{}{}
	}
	out := make([]string, 0, min(limit, len(all)))
	for _, f := range all {
		if len(out) >= limit {
			break
		}
		_, t := isTiming[f]
		if v, ok := chart[f]; t || (ok && query.Present(v)) {
			out = append(out, f)
		}
	}
	return out
}

func decodeLevel1(entry *cache.Level1Entry) (passage.List, bool) {
	if len(entry.Passages) == 0 {
		return nil, false
	}
	var list passage.List
	if err := json.Unmarshal(entry.Passages, &list); err != nil || len(list) == 0 {
		return nil, false
	}
	return list, true
}

func nicheKey(n *niche.Niche) string {
	if len(n.Keywords) > 0 {
		return n.Keywords[0]
	}
	return n.Key()
}

func sinceMS(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
