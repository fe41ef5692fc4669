package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"astro-rag/internal/cache"
	"astro-rag/internal/retrieval"
	"astro-rag/pkg/logging/logging"
)

// CacheReporter is the slice of cache.Manager the ops endpoints read.
type CacheReporter interface {
	Stats() cache.Stats
	HealthCheck(ctx context.Context) cache.Health
}

type RetrievalReporter interface {
	Stats() retrieval.Stats
}

// OpsHandler serves health, readiness and stats endpoints.
type OpsHandler struct {
	Cache     CacheReporter
	Retrieval RetrievalReporter
}

func NewOpsHandler(c CacheReporter, r RetrievalReporter) *OpsHandler {
	return &OpsHandler{Cache: c, Retrieval: r}
}

// Healthz handles GET /healthz. It only reports that the process is up.
func (h *OpsHandler) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Readyz handles GET /readyz and answers 503 while the cache backend is unreachable.
func (h *OpsHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	health := h.Cache.HealthCheck(r.Context())
	status := http.StatusOK
	if !health.Healthy {
		status = http.StatusServiceUnavailable
		logging.L(r.Context()).Warn("cache not ready",
			zap.String("cache_type", health.Backend),
			zap.String("error", health.Error),
		)
	}
	writeJSON(w, status, health)
}

// CacheStats handles GET /debug/cache/stats.
func (h *OpsHandler) CacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Cache.Stats())
}

// RetrievalStats handles GET /debug/retrieval/stats.
func (h *OpsHandler) RetrievalStats(w http.ResponseWriter, _ *http.Request) {
	if h.Retrieval == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "retrieval_unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, h.Retrieval.Stats())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
