package config

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"astro-rag/internal/cache"
	"astro-rag/internal/rerank"
)

func init() {
	validation.ErrorTag = "mapstructure"
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Env, validation.Required),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.Server),
		validation.Field(&c.Cache),
		validation.Field(&c.Retrieval),
		validation.Field(&c.Embeddings),
		validation.Field(&c.LLM),
		validation.Field(&c.Rerank, validation.By(nonNegativeWeights)),
		validation.Field(&c.Preload),
		validation.Field(&c.Answer),
	)
}

func (c ServerConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.RequestTimeout, validation.Min(time.Millisecond)),
		validation.Field(&c.ShutdownTimeout, validation.Min(time.Millisecond)),
	)
}

func (c CacheConfig) Validate() error {
	networked := c.Backend == cache.BackendRedis || c.Backend == cache.BackendValkey
	return validation.ValidateStruct(&c,
		validation.Field(&c.Backend, validation.Required, validation.In(cache.BackendRedis, cache.BackendValkey, cache.BackendMemory)),
		validation.Field(&c.Addr, validation.When(networked, validation.Required)),
		validation.Field(&c.DB, validation.Min(0)),
		validation.Field(&c.DefaultTTL, validation.Min(time.Second)),
		validation.Field(&c.Level1TTL, validation.Min(time.Second)),
		validation.Field(&c.Level2TTL, validation.Min(time.Second)),
	)
}

func (c RetrievalConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Backend, validation.Required, validation.In(RetrievalHTTP, RetrievalMilvus)),
		validation.Field(&c.Width, validation.Required, validation.Min(1)),
		validation.Field(&c.TaskTimeout, validation.Min(time.Millisecond)),
		validation.Field(&c.TopK, validation.Required, validation.Min(1)),
		validation.Field(&c.HTTP, validation.Skip.When(c.Backend != RetrievalHTTP)),
		validation.Field(&c.Milvus, validation.Skip.When(c.Backend != RetrievalMilvus)),
	)
}

func (c HTTPService) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.MaxRetries, validation.Min(0)),
	)
}

func (c MilvusConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Address, validation.Required),
		validation.Field(&c.Collection, validation.Required),
	)
}

func (c EmbeddingsConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Provider, validation.Required, validation.In(EmbeddingsNone, EmbeddingsOpenAI, EmbeddingsGemini)),
		validation.Field(&c.Dimensions, validation.Min(0)),
		validation.Field(&c.GeminiAPIKey, validation.When(c.Provider == EmbeddingsGemini, validation.Required)),
	)
}

func (c LLMConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.Model, validation.Required),
		validation.Field(&c.MaxRetries, validation.Min(0)),
	)
}

func (c PreloadConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.BatchSize, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxParallel, validation.Required, validation.Min(1)),
		validation.Field(&c.Timeout, validation.Min(time.Second)),
		validation.Field(&c.Threshold, validation.Min(0.0), validation.Max(1.0)),
	)
}

func (c AnswerConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.MaxBroadFactors, validation.Min(1)),
		validation.Field(&c.FocusCacheSize, validation.Min(1)),
	)
}

func nonNegativeWeights(value interface{}) error {
	w, _ := value.(rerank.Weights)
	if w.Distance < 0 || w.IDF < 0 || w.Tag < 0 || w.Length < 0 || w.Proximity < 0 {
		return errors.New("weights must not be negative")
	}
	return nil
}
