package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CacheRequestsTotal counts cache reads by level (l1, l2, factor, generic)
	// and result (hit, miss, error).
	CacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astro_cache_requests_total",
			Help: "Cache lookups by level and result.",
		},
		[]string{"level", "result"},
	)

	CacheSetsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astro_cache_sets_total",
			Help: "Cache writes by level.",
		},
		[]string{"level"},
	)

	// StoreOpDuration observes raw backing-store latency.
	StoreOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "astro_store_op_duration_seconds",
			Help:    "Backing store operation latency in seconds.",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5},
		},
		[]string{"backend", "op"},
	)

	// FactorRetrievalsTotal counts per-factor retrieval tasks by outcome
	// (success, empty, or a failure reason).
	FactorRetrievalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astro_factor_retrievals_total",
			Help: "Per-factor retrieval tasks by outcome.",
		},
		[]string{"outcome"},
	)

	RetrievalDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "astro_retrieval_duration_seconds",
			Help:    "Retrieval latency by stage (broad, deep, multi_stage, preload).",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"stage"},
	)

	RerankDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "astro_rerank_duration_seconds",
			Help:    "Fast reranker latency in seconds.",
			Buckets: []float64{0.0005, 0.001, 0.002, 0.005, 0.01, 0.02, 0.05},
		},
	)

	PreloadCoverage = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "astro_preload_coverage_ratio",
			Help: "Fraction of a niche's factors found in cache at the last status check.",
		},
		[]string{"niche"},
	)

	// GatewayLatencySeconds is the operational HTTP latency.
	GatewayLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_latency_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"path", "method", "status_code"},
	)

	registerOnce sync.Once
)

// Register adds every collector to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			CacheRequestsTotal,
			CacheSetsTotal,
			StoreOpDuration,
			FactorRetrievalsTotal,
			RetrievalDurationSeconds,
			RerankDurationSeconds,
			PreloadCoverage,
			GatewayLatencySeconds,
		)
	})
}

// Handler exposes the /metrics endpoint for Prometheus to scrape.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveSince records the time elapsed since start on a histogram.
func ObserveSince(o prometheus.Observer, start time.Time) {
	o.Observe(time.Since(start).Seconds())
}

// Middleware measures latency for each HTTP request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rec, r)

		GatewayLatencySeconds.
			WithLabelValues(r.URL.Path, r.Method, strconv.Itoa(rec.statusCode)).
			Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}
