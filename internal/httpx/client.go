// Package httpx is the JSON-over-HTTP client shared by upstream adapters
// (LLM, embeddings, retrieval service). It retries transient failures with
// jittered backoff and opens a short circuit after repeated failures.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var ErrCircuitOpen = errors.New("httpx: circuit open")

// StatusError is a non-2xx upstream response.
type StatusError struct {
	Status  int
	Message string
	Type    string
}

func (e *StatusError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("upstream %d: %s (%s)", e.Status, e.Message, e.Type)
	}
	return fmt.Sprintf("upstream %d: %s", e.Status, e.Message)
}

type Client struct {
	cfg    Config
	hc     *http.Client
	logger *zap.Logger

	failures  atomic.Int32
	openUntil atomic.Int64 // unix nanos
}

// New builds a client. logger may be nil.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Transport: newTransport(cfg)}
	}
	return &Client{cfg: cfg, hc: hc, logger: logger}, nil
}

// BaseURL reports the normalized base URL.
func (c *Client) BaseURL() string { return c.cfg.BaseURL }

// PostJSON marshals payload, POSTs it to BaseURL+path with retries and
// returns the raw 2xx body. Non-2xx responses become *StatusError.
func (c *Client) PostJSON(ctx context.Context, path string, payload any) ([]byte, error) {
	if until := c.openUntil.Load(); until > time.Now().UnixNano() {
		return nil, ErrCircuitOpen
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	url := c.cfg.BaseURL + path
	resp, err := c.doWithRetry(ctx, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build HTTP request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}
		for k, v := range c.cfg.Headers {
			req.Header.Set(k, v)
		}
		return c.hc.Do(req)
	})
	if err != nil {
		c.recordFailure()
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxResponseBytes))
	if err != nil {
		c.recordFailure()
		return nil, fmt.Errorf("read upstream response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode >= 500 {
			c.recordFailure()
		}
		return nil, statusError(resp.StatusCode, raw)
	}
	c.failures.Store(0)
	return raw, nil
}

func (c *Client) recordFailure() {
	if c.failures.Inc() < int32(c.cfg.MaxConsecutiveFailures) {
		return
	}
	c.failures.Store(0)
	c.openUntil.Store(time.Now().Add(c.cfg.CircuitOpen).UnixNano())
	c.logger.Warn("upstream circuit opened",
		zap.String("base_url", c.cfg.BaseURL),
		zap.Duration("open_for", c.cfg.CircuitOpen),
	)
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func statusError(status int, body []byte) *StatusError {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Message != "" {
		return &StatusError{Status: status, Message: env.Error.Message, Type: env.Error.Type}
	}
	return &StatusError{Status: status, Message: Truncate(string(body), 200)}
}

// Truncate limits s to n bytes for logging.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func (c *Client) Close() error {
	c.hc.CloseIdleConnections()
	return nil
}
