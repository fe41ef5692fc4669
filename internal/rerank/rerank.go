// Package rerank orders retrieved passages by a fused lexical and vector
// score without calling a model.
package rerank

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"astro-rag/internal/metrics"
	"astro-rag/internal/passage"
	"astro-rag/pkg/logging/logging"
)

// Weights of the fused score. Proximity is a flat bonus for passages
// closer than ProximityThreshold.
type Weights struct {
	Distance  float64 `json:"distance" mapstructure:"distance"`
	IDF       float64 `json:"idf" mapstructure:"idf"`
	Tag       float64 `json:"tag" mapstructure:"tag"`
	Length    float64 `json:"length_penalty" mapstructure:"length"`
	Proximity float64 `json:"proximity_bonus" mapstructure:"proximity"`
}

func DefaultWeights() Weights {
	return Weights{Distance: 1.0, IDF: 0.35, Tag: 0.2, Length: 0.15, Proximity: 0.2}
}

const (
	ProximityThreshold = 0.3

	optimalMinLen = 300
	optimalMaxLen = 900
)

type Reranker struct {
	w      Weights
	logger *zap.Logger
}

// New builds a reranker. A zero Weights value takes the defaults.
func New(w Weights, logger *zap.Logger) *Reranker {
	if w == (Weights{}) {
		w = DefaultWeights()
	}
	return &Reranker{w: w, logger: logging.Or(logger).Named("rerank")}
}

func (r *Reranker) Weights() Weights { return r.w }

type Options struct {
	// QueryTokens skips tokenizing the query when the caller already has them.
	QueryTokens TokenSet
	// TopK truncates the sorted output; <= 0 keeps everything.
	TopK int
}

// Rerank returns a new list sorted by fused score, highest first, ties in
// input order. Each returned passage carries RerankScore and OriginalRank.
// Empty input yields an empty list and a single passage is returned as is.
func (r *Reranker) Rerank(passages passage.List, query string, opts Options) passage.List {
	if len(passages) == 0 {
		return passage.List{}
	}
	if len(passages) == 1 {
		return passages
	}
	start := time.Now()
	defer metrics.ObserveSince(metrics.RerankDurationSeconds, start)

	qTokens := opts.QueryTokens
	if qTokens == nil {
		qTokens = Tokenize(query)
	}
	qLower := strings.ToLower(query)
	qWeight := qTokens.weight()

	n := len(passages)
	scores := make([]float64, n)
	for i, p := range passages {
		d := p.EffectiveDistance()
		s := r.w.Distance*(1-d) +
			r.w.IDF*idfOverlap(qTokens, qWeight, Tokenize(p.Text)) +
			r.w.Tag*tagScore(qLower, p.Tags) +
			r.w.Length*lengthScore(utf8.RuneCountInString(p.Text))
		if d < ProximityThreshold {
			s += r.w.Proximity
		}
		scores[i] = s
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })
	if opts.TopK > 0 && opts.TopK < n {
		order = order[:opts.TopK]
	}

	out := make(passage.List, len(order))
	for i, idx := range order {
		p := passages[idx]
		p.RerankScore = passage.Float(scores[idx])
		rank := idx
		p.OriginalRank = &rank
		out[i] = p
	}

	r.logger.Debug("reranked passages",
		zap.Int("passages", n),
		zap.Int("top_k", opts.TopK),
		zap.Float64("latency_ms", float64(time.Since(start).Microseconds())/1000),
	)
	return out
}

// TokenSet is a set of lowercase tokens.
type TokenSet map[string]struct{}

func (t TokenSet) weight() float64 {
	var w float64
	for tok := range t {
		w += float64(len(tok)) / 10
	}
	return w
}

var (
	tokenRe   = regexp.MustCompile(`[a-z0-9]+`)
	stopwords = map[string]struct{}{
		"the": {}, "and": {}, "or": {}, "is": {}, "in": {}, "at": {},
		"to": {}, "of": {}, "for": {}, "a": {}, "an": {},
	}
)

// Tokenize returns the alphanumeric tokens of text longer than two
// characters, minus stopwords.
func Tokenize(text string) TokenSet {
	set := TokenSet{}
	if text == "" {
		return set
	}
	for _, tok := range tokenRe.FindAllString(strings.ToLower(text), -1) {
		if len(tok) <= 2 {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		set[tok] = struct{}{}
	}
	return set
}

// idfOverlap approximates IDF by token length: the weight of shared tokens
// over the weight of all query tokens.
func idfOverlap(query TokenSet, queryWeight float64, text TokenSet) float64 {
	if len(query) == 0 || len(text) == 0 || queryWeight == 0 {
		return 0
	}
	var shared float64
	for tok := range query {
		if _, ok := text[tok]; ok {
			shared += float64(len(tok)) / 10
		}
	}
	return math.Min(1, shared/queryWeight)
}

// lengthScore is 1 at the 600-character midpoint and falls off linearly,
// with lengths clamped to [300, 900] first.
func lengthScore(n int) float64 {
	l := math.Max(optimalMinLen, math.Min(optimalMaxLen, float64(n)))
	mid := float64(optimalMinLen+optimalMaxLen) / 2
	return math.Max(0, math.Min(1, 1-math.Abs(l-mid)/optimalMaxLen))
}

func tagScore(queryLower string, tags []string) float64 {
	if len(tags) == 0 {
		return 0
	}
	matches := 0
	for _, t := range tags {
		if strings.Contains(queryLower, strings.ToLower(t)) {
			matches++
		}
	}
	return math.Min(1, float64(matches)/float64(len(tags)))
}
