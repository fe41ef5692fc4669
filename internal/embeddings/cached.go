package embeddings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"astro-rag/internal/cache"
	"astro-rag/internal/retrieval"
	"astro-rag/pkg/logging/logging"
)

const DefaultCacheTTL = 24 * time.Hour

var ErrShortBatch = errors.New("embedding provider returned fewer vectors than requested")

// Cached remembers vectors per (model, text) so repeated factor queries
// skip the provider.
type Cached struct {
	next  retrieval.Embedder
	model string
	cache *cache.Manager
	ttl   time.Duration
}

func NewCached(next retrieval.Embedder, model string, mgr *cache.Manager, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cached{next: next, model: model, cache: mgr, ttl: ttl}
}

// Key is the cache key for a text under model.
func Key(model, text string) string {
	return cache.EmbeddingNamespace + ":" + cache.Fingerprint(map[string]string{"model": model, "text": text})
}

func (c *Cached) EmbedQueries(ctx context.Context, texts []string) ([]retrieval.Embedding, error) {
	out := make([]retrieval.Embedding, len(texts))
	var missing []string
	var missingIdx []int
	for i, t := range texts {
		var e retrieval.Embedding
		if c.cache.Get(ctx, Key(c.model, t), &e) && len(e.Vector) > 0 {
			e.LatencyMS = 0
			out[i] = e
			continue
		}
		missing = append(missing, t)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	fresh, err := c.next.EmbedQueries(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missing) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrShortBatch, len(fresh), len(missing))
	}
	for j, e := range fresh {
		out[missingIdx[j]] = e
		if err := c.cache.Set(ctx, Key(c.model, missing[j]), e, c.ttl); err != nil {
			logging.L(ctx).Warn("embedding not cacheable", zap.String("model", c.model), zap.Error(err))
		}
	}
	return out, nil
}
