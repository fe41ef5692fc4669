package httpx

import (
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestRetryableStatus(t *testing.T) {
	t.Parallel()

	for status, want := range map[int]bool{
		0: true, 200: false, 400: false, 404: false,
		408: true, 429: true, 500: true, 503: true, 599: true,
	} {
		if got := retryableStatus(status); got != want {
			t.Errorf("retryableStatus(%d) = %v, want %v", status, got, want)
		}
	}
}

func TestRetryAfter(t *testing.T) {
	t.Parallel()

	resp := func(v string) *http.Response {
		h := http.Header{}
		if v != "" {
			h.Set("Retry-After", v)
		}
		return &http.Response{Header: h}
	}
	if got := retryAfter(resp("")); got != 0 {
		t.Fatalf("absent header: got %v", got)
	}
	if got := retryAfter(resp("3")); got != 3*time.Second {
		t.Fatalf("seconds: got %v", got)
	}
	if got := retryAfter(resp("86400")); got != maxRetryAfter {
		t.Fatalf("cap: got %v", got)
	}
	if got := retryAfter(resp("soon")); got != 0 {
		t.Fatalf("garbage: got %v", got)
	}
	future := time.Now().Add(10 * time.Second).UTC().Format(http.TimeFormat)
	if got := retryAfter(resp(future)); got <= 0 || got > 11*time.Second {
		t.Fatalf("http date: got %v", got)
	}
}

func TestBackoffBounds(t *testing.T) {
	t.Parallel()

	for attempt := 0; attempt < 20; attempt++ {
		ceiling := min(100*time.Millisecond<<min(attempt, 10), maxBackoff)
		for i := 0; i < 50; i++ {
			d := backoff(100*time.Millisecond, attempt)
			if d < 0 || d >= ceiling {
				t.Fatalf("attempt %d: backoff %v outside [0, %v)", attempt, d, ceiling)
			}
		}
	}
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	if !isTransient(errors.New("dial tcp: connection refused")) {
		t.Fatalf("connection refused is transient")
	}
	if isTransient(errors.New("certificate signed by unknown authority")) {
		t.Fatalf("tls errors are not transient")
	}
}
