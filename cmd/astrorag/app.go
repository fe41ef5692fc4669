package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"astro-rag/internal/cache"
	"astro-rag/internal/config"
	"astro-rag/internal/embeddings"
	"astro-rag/internal/httpx"
	"astro-rag/internal/llm"
	"astro-rag/internal/metrics"
	"astro-rag/internal/niche"
	"astro-rag/internal/orchestrator"
	"astro-rag/internal/preload"
	"astro-rag/internal/rerank"
	"astro-rag/internal/retrieval"
	"astro-rag/pkg/logging/logging"
)

// app owns the long-lived collaborators. Upstream clients are built on first
// use so commands that only touch the cache never need credentials.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	catalog *niche.Catalog
	cache   *cache.Manager

	llmClient *llm.HTTPClient
	embedder  retrieval.Embedder
	retriever retrieval.Retriever
	coord     *retrieval.Coordinator

	closers []io.Closer
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger, err := logging.New(logging.Config{Env: cfg.Env, Level: cfg.LogLevel})
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	metrics.Register()

	store, backend := cache.Open(ctx, cache.Config{
		Backend:     cfg.Cache.Backend,
		Addr:        cfg.Cache.Addr,
		Password:    cfg.Cache.Password,
		DB:          cfg.Cache.DB,
		Prefix:      cfg.Cache.Prefix,
		DialTimeout: cfg.Cache.DialTimeout,
		OpTimeout:   cfg.Cache.OpTimeout,
	}, logger)
	mgr := cache.NewManager(store, cache.ManagerConfig{
		Backend:    backend,
		DefaultTTL: cfg.Cache.DefaultTTL,
		Level1TTL:  cfg.Cache.Level1TTL,
		Level2TTL:  cfg.Cache.Level2TTL,
		Generation: cfg.Cache.Generation,
	}, logger)

	return &app{
		cfg:     cfg,
		logger:  logger,
		catalog: niche.Default(),
		cache:   mgr,
		closers: []io.Closer{mgr},
	}, nil
}

// Close releases every resource and reports all failures together.
func (a *app) Close() error {
	var result *multierror.Error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	_ = a.logger.Sync()
	return result.ErrorOrNil()
}

func (a *app) chatClient() (*llm.HTTPClient, error) {
	if a.llmClient != nil {
		return a.llmClient, nil
	}
	c, err := llm.NewClient(llm.Config{
		BaseURL:    a.cfg.LLM.BaseURL,
		APIKey:     a.cfg.LLM.APIKey,
		Timeout:    a.cfg.LLM.Timeout,
		MaxRetries: a.cfg.LLM.MaxRetries,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("llm client: %w", err)
	}
	a.llmClient = c
	a.closers = append(a.closers, c)
	return c, nil
}

func (a *app) buildEmbedder(ctx context.Context) (retrieval.Embedder, error) {
	ec := a.cfg.Embeddings
	var (
		inner interface {
			retrieval.Embedder
			Model() string
		}
		provider = ec.Provider
	)
	switch provider {
	case config.EmbeddingsNone:
		return nil, nil
	case config.EmbeddingsOpenAI:
		client, err := a.chatClient()
		if err != nil {
			return nil, err
		}
		inner = embeddings.NewOpenAI(client, ec.Model, ec.Dimensions, a.logger)
	case config.EmbeddingsGemini:
		g, err := embeddings.NewGemini(ctx, embeddings.GeminiConfig{
			APIKey:     ec.GeminiAPIKey,
			Model:      ec.Model,
			Dimensions: int32(ec.Dimensions),
			BaseURL:    ec.GeminiURL,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("gemini embeddings: %w", err)
		}
		inner = g
	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", provider)
	}
	return embeddings.NewCached(inner, provider+":"+inner.Model(), a.cache, ec.CacheTTL), nil
}

func (a *app) buildRetriever(ctx context.Context) (retrieval.Retriever, error) {
	rc := a.cfg.Retrieval
	switch rc.Backend {
	case config.RetrievalMilvus:
		if a.embedder == nil {
			return nil, errors.New("milvus retrieval needs an embeddings provider")
		}
		m, err := retrieval.NewMilvusRetriever(ctx, retrieval.MilvusConfig{
			Address:     rc.Milvus.Address,
			Collection:  rc.Milvus.Collection,
			VectorField: rc.Milvus.VectorField,
			TextField:   rc.Milvus.TextField,
			SourceField: rc.Milvus.SourceField,
			TopK:        rc.TopK,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("milvus retriever: %w", err)
		}
		a.closers = append(a.closers, m)
		return m, nil
	default:
		client, err := httpx.New(httpx.Config{
			BaseURL:    rc.HTTP.BaseURL,
			APIKey:     rc.HTTP.APIKey,
			Timeout:    rc.HTTP.Timeout,
			MaxRetries: rc.HTTP.MaxRetries,
		}, a.logger.Named("retrieval-http"))
		if err != nil {
			return nil, fmt.Errorf("retrieval client: %w", err)
		}
		a.closers = append(a.closers, client)
		return retrieval.NewHTTPRetriever(client, retrieval.HTTPConfig{Path: rc.HTTP.Path, TopK: rc.TopK}, a.logger), nil
	}
}

// coordinator builds the embedder, retriever and coordinator once.
func (a *app) coordinator(ctx context.Context) (*retrieval.Coordinator, error) {
	if a.coord != nil {
		return a.coord, nil
	}
	emb, err := a.buildEmbedder(ctx)
	if err != nil {
		return nil, err
	}
	a.embedder = emb
	r, err := a.buildRetriever(ctx)
	if err != nil {
		return nil, err
	}
	a.retriever = r
	a.coord = retrieval.NewCoordinator(a.cache, r, emb, a.catalog, retrieval.Config{
		Width:       a.cfg.Retrieval.Width,
		TaskTimeout: a.cfg.Retrieval.TaskTimeout,
	}, a.logger)
	return a.coord, nil
}

func (a *app) preloader(ctx context.Context) (*preload.Preloader, error) {
	if _, err := a.coordinator(ctx); err != nil {
		return nil, err
	}
	return preload.New(a.cache, a.retriever, a.embedder, a.catalog, preload.Config{
		BatchSize:   a.cfg.Preload.BatchSize,
		MaxParallel: a.cfg.Preload.MaxParallel,
		Timeout:     a.cfg.Preload.Timeout,
		Threshold:   a.cfg.Preload.Threshold,
	}, a.logger), nil
}

// answerer wires the orchestrator; synthesis needs the LLM only when withLLM is set.
func (a *app) answerer(ctx context.Context, withLLM bool) (*orchestrator.Answerer, error) {
	coord, err := a.coordinator(ctx)
	if err != nil {
		return nil, err
	}
	orch := orchestrator.New(coord, rerank.New(a.cfg.Rerank, a.logger), a.logger)

	var synth orchestrator.Synthesizer = orchestrator.SynthesizerFunc(func(context.Context, orchestrator.SynthesisInput) (string, error) {
		return "", errors.New("synthesis is not configured")
	})
	if withLLM {
		client, err := a.chatClient()
		if err != nil {
			return nil, err
		}
		synth = orchestrator.NewLLMSynthesizer(client, orchestrator.LLMSynthesizerConfig{Model: a.cfg.LLM.Model}, a.logger)
	}
	return orchestrator.NewAnswerer(a.catalog, a.cache, orch, synth, orchestrator.AnswererConfig{
		FocusCacheSize:  a.cfg.Answer.FocusCacheSize,
		MaxBroadFactors: a.cfg.Answer.MaxBroadFactors,
		Level1TTL:       a.cfg.Cache.Level1TTL,
		Level2TTL:       a.cfg.Cache.Level2TTL,
	}, a.logger), nil
}
