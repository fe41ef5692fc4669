package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"astro-rag/internal/httpx"
)

type Config struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	MaxRetries  int
	BaseBackoff time.Duration
}

func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("BaseURL is required")
	}
	if c.APIKey == "" {
		return errors.New("APIKey is required")
	}
	return nil
}

var _ Client = (*HTTPClient)(nil)

type HTTPClient struct {
	http   *httpx.Client
	logger *zap.Logger
}

// NewClient returns an OpenAI-compatible Client.
func NewClient(cfg Config, logger *zap.Logger) (*HTTPClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid llm config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("llm")
	hc, err := httpx.New(httpx.Config{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Timeout:     cfg.Timeout,
		MaxRetries:  cfg.MaxRetries,
		BaseBackoff: cfg.BaseBackoff,
	}, logger)
	if err != nil {
		return nil, err
	}
	return &HTTPClient{http: hc, logger: logger}, nil
}

func (c *HTTPClient) ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chat request: %w", err)
	}

	start := time.Now()
	raw, err := c.http.PostJSON(ctx, "/v1/chat/completions", req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	var wire wireChatResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}
	if len(wire.Choices) == 0 {
		return nil, errors.New("chat response has no choices")
	}

	c.logger.Debug("chat completion",
		zap.String("model", wire.Model),
		zap.Duration("duration", time.Since(start)),
	)
	first := wire.Choices[0]
	return &ChatResponse{
		ID:           wire.ID,
		Created:      time.Unix(wire.Created, 0),
		Model:        wire.Model,
		Content:      first.Message.Content,
		FinishReason: first.FinishReason,
		Usage:        wire.Usage,
	}, nil
}

func (c *HTTPClient) Embeddings(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid embedding request: %w", err)
	}

	raw, err := c.http.PostJSON(ctx, "/v1/embeddings", req)
	if err != nil {
		return nil, fmt.Errorf("embeddings: %w", err)
	}

	var wire wireEmbeddingResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(wire.Data) != len(req.Input) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(wire.Data), len(req.Input))
	}

	vectors := make([][]float32, len(req.Input))
	for _, d := range wire.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return &EmbeddingResponse{Model: wire.Model, Vectors: vectors, Usage: wire.Usage}, nil
}

func (c *HTTPClient) Close() error {
	return c.http.Close()
}
