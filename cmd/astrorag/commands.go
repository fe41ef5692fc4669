package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"astro-rag/internal/orchestrator"
)

// withApp loads configuration, builds the app, runs fn and closes the app.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) (err error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(ctx, a)
}

func requireFlag(cmd *cobra.Command, name string) (string, error) {
	v, _ := cmd.Flags().GetString(name)
	if v == "" {
		return "", fmt.Errorf("--%s is required", name)
	}
	return v, nil
}

func newPreloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preload",
		Short: "Warm the per-factor cache for a session's chart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := requireFlag(cmd, "session")
			if err != nil {
				return err
			}
			name, _ := cmd.Flags().GetString("niche")
			chartPath, _ := cmd.Flags().GetString("chart")
			chart, err := readChart(chartPath)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				p, err := a.preloader(ctx)
				if err != nil {
					return err
				}
				n := a.catalog.Resolve(name)
				report := p.Preload(ctx, session, n.Name, chart, func(pct float64, msg string) {
					a.logger.Debug("preload progress", zap.Float64("percent", pct), zap.String("message", msg))
				})
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	cmd.Flags().String("session", "", "session ID")
	cmd.Flags().String("niche", "", "niche name or keyword")
	cmd.Flags().String("chart", "", "chart JSON file, - for stdin")
	return cmd
}

func newPreloadStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preload-status",
		Short: "Report how much of a niche is cached for a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := requireFlag(cmd, "session")
			if err != nil {
				return err
			}
			name, _ := cmd.Flags().GetString("niche")
			return withApp(cmd, func(ctx context.Context, a *app) error {
				p, err := a.preloader(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), p.Status(ctx, session, a.catalog.Resolve(name).Name))
			})
		},
	}
	cmd.Flags().String("session", "", "session ID")
	cmd.Flags().String("niche", "", "niche name or keyword")
	return cmd
}

func questionRequest(cmd *cobra.Command) (orchestrator.Request, error) {
	session, _ := cmd.Flags().GetString("session")
	name, _ := cmd.Flags().GetString("niche")
	question, err := requireFlag(cmd, "question")
	if err != nil {
		return orchestrator.Request{}, err
	}
	chartPath, _ := cmd.Flags().GetString("chart")
	chart, err := readChart(chartPath)
	if err != nil {
		return orchestrator.Request{}, err
	}
	return orchestrator.Request{SessionID: session, Niche: name, Question: question, Chart: chart}, nil
}

func addQuestionFlags(cmd *cobra.Command) {
	cmd.Flags().String("session", "", "session ID")
	cmd.Flags().String("niche", "", "niche name or keyword")
	cmd.Flags().String("question", "", "the user's question")
	cmd.Flags().String("chart", "", "chart JSON file, - for stdin")
}

func newRetrieveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retrieve",
		Short: "Run multi-stage retrieval and print reranked passages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := questionRequest(cmd)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				ans, err := a.answerer(ctx, false)
				if err != nil {
					return err
				}
				plan, res, err := ans.Retrieve(ctx, req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"plan":     plan,
					"passages": res.Records,
					"stats":    res.Stats,
				})
			})
		},
	}
	addQuestionFlags(cmd)
	return cmd
}

func newAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Answer a question about a chart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := questionRequest(cmd)
			if err != nil {
				return err
			}
			req.Mode, _ = cmd.Flags().GetString("mode")
			if req.Mode != orchestrator.ModeDraft && req.Mode != orchestrator.ModeExpand {
				return fmt.Errorf("--mode must be %s or %s", orchestrator.ModeDraft, orchestrator.ModeExpand)
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				ans, err := a.answerer(ctx, true)
				if err != nil {
					return err
				}
				resp, err := ans.Answer(ctx, req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), resp)
			})
		},
	}
	addQuestionFlags(cmd)
	cmd.Flags().String("mode", orchestrator.ModeDraft, "draft or expand")
	cmd.Flags().String("model", "", "chat model override")
	return cmd
}

func newClearSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear-session",
		Short: "Delete every cached factor for a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := requireFlag(cmd, "session")
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				n := a.cache.ClearSession(ctx, session)
				return printJSON(cmd.OutOrStdout(), map[string]any{"session_id": session, "deleted": n})
			})
		},
	}
	cmd.Flags().String("session", "", "session ID")
	return cmd
}

func newCacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cache-stats",
		Short: "Print cache statistics and health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				health := a.cache.HealthCheck(ctx)
				if err := printJSON(cmd.OutOrStdout(), map[string]any{
					"stats":  a.cache.Stats(),
					"health": health,
				}); err != nil {
					return err
				}
				if !health.Healthy {
					return errors.New("cache is unhealthy")
				}
				return nil
			})
		},
	}
}
