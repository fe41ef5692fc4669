// Package retrieval fetches classical-text passages for chart factors,
// cache first, fanning out to the retrieval collaborator on a bounded pool.
package retrieval

import (
	"context"
	"errors"

	"astro-rag/internal/passage"
)

// ErrNoRetriever is returned by adapters constructed without a backend.
var ErrNoRetriever = errors.New("retrieval: no retriever configured")

// Query is one retrieval request. Embedding is nil when no embedder is wired.
type Query struct {
	Text      string
	Embedding []float32
}

// Retriever is the retrieval collaborator. It must accept a single query
// and may merge several into one upstream call.
type Retriever interface {
	RetrievePassages(ctx context.Context, queries []Query) (passage.List, error)
}

// Embedding is the embeddings collaborator's per-text result.
type Embedding struct {
	Query     string    `json:"query"`
	Vector    []float32 `json:"embedding"`
	Dimension int       `json:"dimension"`
	Model     string    `json:"model"`
	LatencyMS float64   `json:"latency_ms"`
}

// Embedder is the embeddings collaborator. Results are in input order.
type Embedder interface {
	EmbedQueries(ctx context.Context, texts []string) ([]Embedding, error)
}

// RetrieverFunc adapts a function to Retriever.
type RetrieverFunc func(ctx context.Context, queries []Query) (passage.List, error)

func (f RetrieverFunc) RetrievePassages(ctx context.Context, queries []Query) (passage.List, error) {
	return f(ctx, queries)
}

// Embed fills in embeddings for texts. A nil embedder yields queries
// without vectors.
func Embed(ctx context.Context, e Embedder, texts []string) ([]Query, error) {
	out := make([]Query, len(texts))
	for i, t := range texts {
		out[i].Text = t
	}
	if e == nil || len(texts) == 0 {
		return out, nil
	}
	embs, err := e.EmbedQueries(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(embs) != len(texts) {
		return nil, errors.New("embedder returned a different number of vectors")
	}
	for i := range out {
		out[i].Embedding = embs[i].Vector
	}
	return out, nil
}
