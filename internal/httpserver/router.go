package httpserver

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"astro-rag/internal/handlers"
	"astro-rag/internal/metrics"
	"astro-rag/internal/middleware"
)

const DefaultRequestTimeout = 15 * time.Second

// SetupRouter mounts the operational endpoints. requestTimeout <= 0 uses
// DefaultRequestTimeout.
func SetupRouter(r chi.Router, baseLogger *zap.Logger, ops *handlers.OpsHandler, requestTimeout time.Duration) {
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}

	r.Use(metrics.Middleware)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Recoverer())
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", ops.Healthz)
	r.Get("/readyz", ops.Readyz)
	r.Route("/debug", func(r chi.Router) {
		r.Get("/cache/stats", ops.CacheStats)
		r.Get("/retrieval/stats", ops.RetrievalStats)
	})

	r.Handle("/metrics", metrics.Handler())
}
