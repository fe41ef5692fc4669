package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"astro-rag/internal/config"
)

// flagKeys maps command flags onto configuration keys.
var flagKeys = map[string]string{
	"log-level":     "log_level",
	"cache-backend": "cache.backend",
	"cache-addr":    "cache.addr",
	"addr":          "server.addr",
	"retrieval":     "retrieval.backend",
	"embeddings":    "embeddings.provider",
	"model":         "llm.model",
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "astrorag",
		Short:         "Chart-aware retrieval, caching and answer synthesis for astrology questions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	pf := root.PersistentFlags()
	pf.String("config", "", "YAML config file")
	pf.String("env-file", ".env", "dotenv file loaded before reading ASTRO_* variables")
	pf.String("log-level", "", "debug, info, warn or error")
	pf.String("cache-backend", "", "redis, valkey or memory")
	pf.String("cache-addr", "", "cache server address")
	pf.String("retrieval", "", "retrieval backend: http or milvus")
	pf.String("embeddings", "", "embeddings provider: none, openai or gemini")

	root.AddCommand(
		newServeCmd(),
		newPreloadCmd(),
		newPreloadStatusCmd(),
		newRetrieveCmd(),
		newAskCmd(),
		newClearSessionCmd(),
		newCacheStatsCmd(),
	)
	return root
}

// loadConfig reads configuration for cmd, letting any flag in flagKeys that
// the command knows about override the file and environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")

	flags := map[string]*pflag.Flag{}
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			flags[key] = f
		}
	}
	return config.Load(config.Options{EnvFile: envFile, ConfigFile: configFile, Flags: flags})
}

func readChart(path string) (map[string]any, error) {
	if path == "" {
		return map[string]any{}, nil
	}
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open chart: %w", err)
		}
		defer f.Close()
		r = f
	}
	var chart map[string]any
	if err := json.NewDecoder(r).Decode(&chart); err != nil {
		return nil, fmt.Errorf("decode chart %s: %w", path, err)
	}
	if chart == nil {
		chart = map[string]any{}
	}
	return chart, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
