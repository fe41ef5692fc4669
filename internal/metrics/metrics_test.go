package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T) string {
	t.Helper()
	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics handler returned %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	return string(body)
}

func TestRegisterIsIdempotent(t *testing.T) {
	Register()
	Register()
}

func TestMiddlewareRecordsStatus(t *testing.T) {
	Register()

	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status not passed through: %d", rr.Code)
	}

	body := scrape(t)
	want := `gateway_latency_seconds_count{method="GET",path="/readyz",status_code="503"} 1`
	if !strings.Contains(body, want) {
		t.Fatalf("expected %q in scrape output", want)
	}
}

func TestCollectorsAreExported(t *testing.T) {
	Register()

	CacheRequestsTotal.WithLabelValues("l1", "hit").Inc()
	FactorRetrievalsTotal.WithLabelValues("timeout").Inc()
	PreloadCoverage.WithLabelValues("Career & Finance").Set(0.5)
	ObserveSince(RerankDurationSeconds, time.Now())

	body := scrape(t)
	for _, want := range []string{
		`astro_cache_requests_total{level="l1",result="hit"}`,
		`astro_factor_retrievals_total{outcome="timeout"}`,
		`astro_preload_coverage_ratio{niche="Career & Finance"} 0.5`,
		`astro_rerank_duration_seconds_count`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape output is missing %q", want)
		}
	}
}
