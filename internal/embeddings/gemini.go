package embeddings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"astro-rag/internal/retrieval"
	"astro-rag/pkg/logging/logging"
)

const DefaultGeminiModel = "text-embedding-004"

type GeminiConfig struct {
	APIKey     string
	Model      string // default: text-embedding-004
	Dimensions int32  // 0 keeps the model's native size
	// BaseURL overrides the Gemini API endpoint.
	BaseURL string
}

// Gemini embeds through the Gemini API.
type Gemini struct {
	client *genai.Client
	cfg    GeminiConfig
	logger *zap.Logger
}

func NewGemini(ctx context.Context, cfg GeminiConfig, logger *zap.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: c, cfg: cfg, logger: logging.Or(logger).Named("embeddings")}, nil
}

func (g *Gemini) Model() string { return g.cfg.Model }

func (g *Gemini) EmbedQueries(ctx context.Context, texts []string) ([]retrieval.Embedding, error) {
	if len(texts) == 0 {
		return []retrieval.Embedding{}, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}
	var conf *genai.EmbedContentConfig
	if g.cfg.Dimensions > 0 {
		d := g.cfg.Dimensions
		conf = &genai.EmbedContentConfig{OutputDimensionality: &d}
	}

	start := time.Now()
	resp, err := g.client.Models.EmbedContent(ctx, g.cfg.Model, contents, conf)
	if err != nil {
		return nil, fmt.Errorf("gemini embed %d queries: %w", len(texts), err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d queries", len(resp.Embeddings), len(texts))
	}
	latency := float64(time.Since(start).Microseconds()) / 1000 / float64(len(texts))

	out := make([]retrieval.Embedding, len(texts))
	for i, e := range resp.Embeddings {
		var v []float32
		if e != nil {
			v = e.Values
		}
		out[i] = retrieval.Embedding{Query: texts[i], Vector: v, Dimension: len(v), Model: g.cfg.Model, LatencyMS: latency}
	}
	g.logger.Debug("embedded queries", zap.Int("queries", len(texts)), zap.Float64("latency_ms", latency))
	return out, nil
}
