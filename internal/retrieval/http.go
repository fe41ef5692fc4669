package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"astro-rag/internal/httpx"
	"astro-rag/internal/passage"
	"astro-rag/pkg/logging/logging"
)

const (
	DefaultRetrievePath = "/retrieve"
	DefaultTopK         = 5
)

type HTTPConfig struct {
	Path string // default: /retrieve
	TopK int    // default: 5
}

// HTTPRetriever calls a retrieval service that accepts
// {"queries": [...], "embeddings": [...], "top_k": n} and answers with any
// of the shapes passage.Decode understands.
type HTTPRetriever struct {
	client *httpx.Client
	cfg    HTTPConfig
	logger *zap.Logger
}

func NewHTTPRetriever(client *httpx.Client, cfg HTTPConfig, logger *zap.Logger) *HTTPRetriever {
	if cfg.Path == "" {
		cfg.Path = DefaultRetrievePath
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	return &HTTPRetriever{client: client, cfg: cfg, logger: logging.Or(logger).Named("retriever")}
}

type retrieveRequest struct {
	Queries    []string    `json:"queries"`
	Embeddings [][]float32 `json:"embeddings,omitempty"`
	TopK       int         `json:"top_k"`
}

func (r *HTTPRetriever) RetrievePassages(ctx context.Context, queries []Query) (passage.List, error) {
	if r.client == nil {
		return nil, ErrNoRetriever
	}
	if len(queries) == 0 {
		return passage.List{}, nil
	}

	req := retrieveRequest{Queries: make([]string, len(queries)), TopK: r.cfg.TopK}
	withVectors := true
	for i, q := range queries {
		req.Queries[i] = q.Text
		withVectors = withVectors && len(q.Embedding) > 0
	}
	if withVectors {
		req.Embeddings = make([][]float32, len(queries))
		for i, q := range queries {
			req.Embeddings[i] = q.Embedding
		}
	}

	raw, err := r.client.PostJSON(ctx, r.cfg.Path, req)
	if err != nil {
		return nil, fmt.Errorf("retrieve passages: %w", err)
	}
	list, shape := passage.Decode(raw, req.Queries)
	if shape == passage.ShapeMalformed {
		r.logger.Warn("malformed retrieval response",
			zap.String("body", httpx.Truncate(string(raw), 200)),
		)
		return passage.List{}, nil
	}
	return list, nil
}
