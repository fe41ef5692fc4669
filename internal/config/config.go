// Package config assembles runtime configuration from defaults, a .env file,
// an optional YAML file, ASTRO_* environment variables and command flags,
// in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"astro-rag/internal/rerank"
)

const EnvPrefix = "ASTRO"

// Retrieval backends.
const (
	RetrievalHTTP   = "http"
	RetrievalMilvus = "milvus"
)

// Embedding providers.
const (
	EmbeddingsNone   = "none"
	EmbeddingsOpenAI = "openai"
	EmbeddingsGemini = "gemini"
)

type Config struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`

	Server     ServerConfig     `mapstructure:"server"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Retrieval  RetrievalConfig  `mapstructure:"retrieval"`
	Embeddings EmbeddingsConfig `mapstructure:"embeddings"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Rerank     rerank.Weights   `mapstructure:"rerank"`
	Preload    PreloadConfig    `mapstructure:"preload"`
	Answer     AnswerConfig     `mapstructure:"answer"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type CacheConfig struct {
	Backend       string        `mapstructure:"backend"`
	Addr          string        `mapstructure:"addr"`
	Password      string        `mapstructure:"password"`
	DB            int           `mapstructure:"db"`
	Prefix        string        `mapstructure:"prefix"`
	Generation    string        `mapstructure:"generation"`
	DefaultTTL    time.Duration `mapstructure:"default_ttl"`
	Level1TTL     time.Duration `mapstructure:"l1_ttl"`
	Level2TTL     time.Duration `mapstructure:"l2_ttl"`
	DialTimeout   time.Duration `mapstructure:"dial_timeout"`
	OpTimeout     time.Duration `mapstructure:"op_timeout"`
	SweepSchedule string        `mapstructure:"sweep_schedule"`
}

type RetrievalConfig struct {
	Backend     string        `mapstructure:"backend"`
	Width       int           `mapstructure:"width"`
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
	TopK        int           `mapstructure:"top_k"`
	HTTP        HTTPService   `mapstructure:"http"`
	Milvus      MilvusConfig  `mapstructure:"milvus"`
}

type HTTPService struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Path       string        `mapstructure:"path"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

type MilvusConfig struct {
	Address     string `mapstructure:"address"`
	Collection  string `mapstructure:"collection"`
	VectorField string `mapstructure:"vector_field"`
	TextField   string `mapstructure:"text_field"`
	SourceField string `mapstructure:"source_field"`
}

type EmbeddingsConfig struct {
	Provider     string        `mapstructure:"provider"`
	Model        string        `mapstructure:"model"`
	Dimensions   int           `mapstructure:"dimensions"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	GeminiAPIKey string        `mapstructure:"gemini_api_key"`
	GeminiURL    string        `mapstructure:"gemini_base_url"`
}

type LLMConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

type PreloadConfig struct {
	BatchSize   int           `mapstructure:"batch_size"`
	MaxParallel int           `mapstructure:"max_parallel"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Threshold   float64       `mapstructure:"threshold"`
}

type AnswerConfig struct {
	MaxBroadFactors int `mapstructure:"max_broad_factors"`
	FocusCacheSize  int `mapstructure:"focus_cache_size"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "production")
	v.SetDefault("log_level", "info")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("cache.backend", "redis")
	v.SetDefault("cache.addr", "127.0.0.1:6379")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.prefix", "")
	v.SetDefault("cache.generation", "")
	v.SetDefault("cache.default_ttl", 60*time.Minute)
	v.SetDefault("cache.l1_ttl", 12*time.Hour)
	v.SetDefault("cache.l2_ttl", 3*time.Hour)
	v.SetDefault("cache.dial_timeout", 5*time.Second)
	v.SetDefault("cache.op_timeout", 5*time.Second)
	v.SetDefault("cache.sweep_schedule", "*/5 * * * *")

	v.SetDefault("retrieval.backend", RetrievalHTTP)
	v.SetDefault("retrieval.width", 8)
	v.SetDefault("retrieval.task_timeout", 20*time.Second)
	v.SetDefault("retrieval.top_k", 5)
	v.SetDefault("retrieval.http.base_url", "http://127.0.0.1:8000")
	v.SetDefault("retrieval.http.api_key", "")
	v.SetDefault("retrieval.http.path", "/retrieve")
	v.SetDefault("retrieval.http.timeout", 30*time.Second)
	v.SetDefault("retrieval.http.max_retries", 2)
	v.SetDefault("retrieval.milvus.address", "127.0.0.1:19530")
	v.SetDefault("retrieval.milvus.collection", "classical_texts")
	v.SetDefault("retrieval.milvus.vector_field", "vector")
	v.SetDefault("retrieval.milvus.text_field", "text")
	v.SetDefault("retrieval.milvus.source_field", "source")

	v.SetDefault("embeddings.provider", EmbeddingsNone)
	v.SetDefault("embeddings.model", "")
	v.SetDefault("embeddings.dimensions", 0)
	v.SetDefault("embeddings.cache_ttl", 24*time.Hour)
	v.SetDefault("embeddings.gemini_api_key", "")
	v.SetDefault("embeddings.gemini_base_url", "")

	v.SetDefault("llm.base_url", "https://api.openai.com")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.max_retries", 2)

	w := rerank.DefaultWeights()
	v.SetDefault("rerank.distance", w.Distance)
	v.SetDefault("rerank.idf", w.IDF)
	v.SetDefault("rerank.tag", w.Tag)
	v.SetDefault("rerank.length", w.Length)
	v.SetDefault("rerank.proximity", w.Proximity)

	v.SetDefault("preload.batch_size", 10)
	v.SetDefault("preload.max_parallel", 8)
	v.SetDefault("preload.timeout", 180*time.Second)
	v.SetDefault("preload.threshold", 0.8)

	v.SetDefault("answer.max_broad_factors", 20)
	v.SetDefault("answer.focus_cache_size", 128)
}

// Options point Load at its optional sources.
type Options struct {
	// EnvFile is loaded into the process environment when it exists.
	// Variables already set are not overridden.
	EnvFile string
	// ConfigFile is a YAML file; empty skips it.
	ConfigFile string
	// Flags maps config keys ("cache.backend") to command flags. A flag
	// only wins when it was set on the command line.
	Flags map[string]*pflag.Flag
}

// Load assembles and validates the configuration.
func Load(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", opts.EnvFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", opts.ConfigFile, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, flag := range opts.Flags {
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
