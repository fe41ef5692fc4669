package httpx

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"time"
)

type Config struct {
	// BaseURL is required; paths passed to PostJSON are appended to it.
	BaseURL string
	// APIKey, when set, is sent as a bearer token.
	APIKey  string
	Headers map[string]string

	Timeout     time.Duration // per-request timeout (default: 30s)
	MaxRetries  int           // retry attempts after the first (default: 2)
	BaseBackoff time.Duration // initial backoff (default: 100ms)

	// Consecutive failed calls that open the circuit (default: 5), and how
	// long it stays open (default: 5s).
	MaxConsecutiveFailures int
	CircuitOpen            time.Duration

	MaxIdleConns        int // default: 100
	MaxIdleConnsPerHost int // default: 100
	MaxResponseBytes    int64

	// HTTPClient overrides the pooled default, mainly for tests.
	HTTPClient *http.Client
}

func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("BaseURL is required")
	}
	return nil
}

// WithDefaults returns a copy with zero fields defaulted and BaseURL
// stripped of trailing slashes.
func (c *Config) WithDefaults() Config {
	cfg := *c
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 100 * time.Millisecond
	}
	if cfg.MaxConsecutiveFailures <= 0 {
		cfg.MaxConsecutiveFailures = 5
	}
	if cfg.CircuitOpen <= 0 {
		cfg.CircuitOpen = 5 * time.Second
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 100
	}
	if cfg.MaxIdleConnsPerHost <= 0 {
		cfg.MaxIdleConnsPerHost = 100
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = 8 << 20
	}
	return cfg
}

func newTransport(cfg Config) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}
