package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"astro-rag/internal/handlers"
	"astro-rag/internal/httpserver"
	"astro-rag/internal/maintenance"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the cache sweeper and the operational HTTP server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().String("addr", "", "listen address (default :8080)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) (err error) {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
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
	logger := a.logger

	sweeper, err := maintenance.Start(cfg.Cache.SweepSchedule, a.cache, logger)
	if err != nil {
		return err
	}
	defer sweeper.Stop()

	ops := handlers.NewOpsHandler(a.cache, nil)
	if coord, cerr := a.coordinator(ctx); cerr != nil {
		logger.Warn("retrieval stats unavailable", zap.Error(cerr))
	} else {
		ops.Retrieval = coord
	}

	r := chi.NewRouter()
	httpserver.SetupRouter(r, logger, ops, cfg.Server.RequestTimeout)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting astrorag",
		zap.String("addr", srv.Addr),
		zap.String("cache_type", a.cache.Stats().Backend),
		zap.String("retrieval_backend", cfg.Retrieval.Backend),
	)

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		logger.Error("server error", zap.Error(err))
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}
	logger.Info("server shutdown complete",
		zap.Int64("sweeps", sweeper.Runs()),
		zap.Int64("swept_entries", sweeper.Removed()),
	)
	return nil
}
