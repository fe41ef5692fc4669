// Package embeddings adapts embedding providers to retrieval.Embedder.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"astro-rag/internal/llm"
	"astro-rag/internal/retrieval"
	"astro-rag/pkg/logging/logging"
)

const DefaultOpenAIModel = "text-embedding-3-small"

// OpenAI embeds through an OpenAI-compatible /v1/embeddings endpoint.
type OpenAI struct {
	client     llm.Client
	model      string
	dimensions int
	logger     *zap.Logger
}

// NewOpenAI wraps client. dimensions <= 0 keeps the model's native size.
func NewOpenAI(client llm.Client, model string, dimensions int, logger *zap.Logger) *OpenAI {
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAI{client: client, model: model, dimensions: dimensions, logger: logging.Or(logger).Named("embeddings")}
}

func (o *OpenAI) Model() string { return o.model }

func (o *OpenAI) EmbedQueries(ctx context.Context, texts []string) ([]retrieval.Embedding, error) {
	if len(texts) == 0 {
		return []retrieval.Embedding{}, nil
	}
	if o.client == nil {
		return nil, errors.New("embeddings: no llm client configured")
	}

	start := time.Now()
	resp, err := o.client.Embeddings(ctx, &llm.EmbeddingRequest{Model: o.model, Input: texts, Dimensions: o.dimensions})
	if err != nil {
		return nil, fmt.Errorf("embed %d queries: %w", len(texts), err)
	}
	latency := float64(time.Since(start).Microseconds()) / 1000 / float64(len(texts))

	model := resp.Model
	if model == "" {
		model = o.model
	}
	out := make([]retrieval.Embedding, len(texts))
	for i, t := range texts {
		out[i] = retrieval.Embedding{
			Query:     t,
			Vector:    resp.Vectors[i],
			Dimension: len(resp.Vectors[i]),
			Model:     model,
			LatencyMS: latency,
		}
	}
	o.logger.Debug("embedded queries", zap.Int("queries", len(texts)), zap.Float64("latency_ms", latency))
	return out, nil
}
