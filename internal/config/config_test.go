package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"astro-rag/internal/cache"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, cache.BackendRedis, cfg.Cache.Backend)
	assert.Equal(t, "127.0.0.1:6379", cfg.Cache.Addr)
	assert.Equal(t, 60*time.Minute, cfg.Cache.DefaultTTL)
	assert.Equal(t, 12*time.Hour, cfg.Cache.Level1TTL)
	assert.Equal(t, 3*time.Hour, cfg.Cache.Level2TTL)
	assert.Equal(t, "*/5 * * * *", cfg.Cache.SweepSchedule)
	assert.Equal(t, 8, cfg.Retrieval.Width)
	assert.Equal(t, 20*time.Second, cfg.Retrieval.TaskTimeout)
	assert.Equal(t, 10, cfg.Preload.BatchSize)
	assert.Equal(t, 8, cfg.Preload.MaxParallel)
	assert.Equal(t, 180*time.Second, cfg.Preload.Timeout)
	assert.InDelta(t, 0.8, cfg.Preload.Threshold, 1e-9)
	assert.InDelta(t, 0.35, cfg.Rerank.IDF, 1e-9)
	assert.Equal(t, EmbeddingsNone, cfg.Embeddings.Provider)
}

func TestLoad_Layering(t *testing.T) {
	file := writeFile(t, "astro.yaml", `
env: development
cache:
  backend: valkey
  addr: valkey:6379
  l1_ttl: 6h
retrieval:
  backend: milvus
  milvus:
    address: milvus:19530
    collection: bphs
rerank:
  idf: 0.5
`)
	t.Setenv("ASTRO_CACHE_ADDR", "10.0.0.5:6379")
	t.Setenv("ASTRO_RETRIEVAL_TASK_TIMEOUT", "7s")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("addr", ":8080", "")
	flags.String("backend", "", "")
	require.NoError(t, flags.Parse([]string{"--addr=:9090"}))

	cfg, err := Load(Options{
		ConfigFile: file,
		Flags: map[string]*pflag.Flag{
			"server.addr":   flags.Lookup("addr"),
			"cache.backend": flags.Lookup("backend"),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, cache.BackendValkey, cfg.Cache.Backend, "unset flags do not override the file")
	assert.Equal(t, "10.0.0.5:6379", cfg.Cache.Addr, "environment beats the file")
	assert.Equal(t, 6*time.Hour, cfg.Cache.Level1TTL)
	assert.Equal(t, 7*time.Second, cfg.Retrieval.TaskTimeout)
	assert.Equal(t, RetrievalMilvus, cfg.Retrieval.Backend)
	assert.Equal(t, "bphs", cfg.Retrieval.Milvus.Collection)
	assert.InDelta(t, 0.5, cfg.Rerank.IDF, 1e-9)
	assert.InDelta(t, 1.0, cfg.Rerank.Distance, 1e-9, "unspecified weights keep defaults")
	assert.Equal(t, ":9090", cfg.Server.Addr, "set flags win")
}

func TestLoad_EnvFile(t *testing.T) {
	t.Setenv("ASTRO_LLM_MODEL", "")
	require.NoError(t, os.Unsetenv("ASTRO_LLM_MODEL"))
	t.Setenv("ASTRO_LLM_API_KEY", "from-process")

	env := writeFile(t, ".env", "ASTRO_LLM_MODEL=gpt-4.1-mini\nASTRO_LLM_API_KEY=from-dotenv\n")
	cfg, err := Load(Options{EnvFile: env})
	require.NoError(t, err)

	assert.Equal(t, "gpt-4.1-mini", cfg.LLM.Model)
	assert.Equal(t, "from-process", cfg.LLM.APIKey, "the process environment is not overridden")

	_, err = Load(Options{EnvFile: filepath.Join(t.TempDir(), "missing.env")})
	assert.NoError(t, err, "a missing env file is ignored")
}

func TestLoad_ConfigFileErrors(t *testing.T) {
	_, err := Load(Options{ConfigFile: filepath.Join(t.TempDir(), "nope.yaml")})
	assert.Error(t, err)

	bad := writeFile(t, "bad.yaml", "cache: [unterminated")
	_, err = Load(Options{ConfigFile: bad})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		errMsg string
	}{
		{"unknown cache backend", "cache:\n  backend: memcached\n", "backend"},
		{"networked backend needs addr", "cache:\n  addr: \"\"\n", "addr"},
		{"negative weight", "rerank:\n  tag: -0.1\n", "weights must not be negative"},
		{"gemini needs a key", "embeddings:\n  provider: gemini\n", "gemini_api_key"},
		{"zero width", "retrieval:\n  width: 0\n", "width"},
		{"threshold above one", "preload:\n  threshold: 1.5\n", "threshold"},
		{"retrieval url", "retrieval:\n  http:\n    base_url: \"not a url\"\n", "base_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(Options{ConfigFile: writeFile(t, "c.yaml", tt.yaml)})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidate_MemoryBackendNeedsNoAddr(t *testing.T) {
	cfg, err := Load(Options{ConfigFile: writeFile(t, "c.yaml", "cache:\n  backend: memory\n  addr: \"\"\n")})
	require.NoError(t, err)
	assert.Equal(t, cache.BackendMemory, cfg.Cache.Backend)
}

func TestValidate_InactiveRetrievalBackendIgnored(t *testing.T) {
	cfg, err := Load(Options{ConfigFile: writeFile(t, "c.yaml", "retrieval:\n  http:\n    base_url: \"\"\n  backend: milvus\n")})
	require.NoError(t, err)
	assert.Equal(t, RetrievalMilvus, cfg.Retrieval.Backend)
}
