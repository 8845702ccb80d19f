package hmssdk

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/hms/pkg/slogx"
	"golang.org/x/time/rate"
)

// Defaults applied by NewSDKClient to zero Config fields.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultRefreshPath = "/auth/me"
)

// Config is resolved once at startup and injected into the client. It
// replaces the per-environment client variants with one parameterized client.
type Config struct {
	// BaseURL of the REST API, e.g. "https://hms.example.org/api".
	BaseURL string

	// Timeout bounds every single HTTP attempt (default 30s).
	Timeout time.Duration

	// Retry is applied to idempotent requests. A zero value means
	// DefaultRetryPolicy.
	Retry RetryPolicy

	// RateLimit caps outgoing requests per second; 0 disables limiting.
	RateLimit float64
	// RateBurst is the limiter burst (default 1 when RateLimit is set).
	RateBurst int

	// RefreshPath is the protected endpoint hit to obtain a rotated token
	// (default "/auth/me").
	RefreshPath string

	// Logger receives client logs; slog.Default when nil.
	Logger *slog.Logger

	// Transport is the base RoundTripper; http.DefaultTransport when nil.
	Transport http.RoundTripper
}

// SDKClient is a client for the hospital REST API. It provides the
// unauthenticated operations, the refresh call used by TokenManager, and
// creates authenticated Sessions.
type SDKClient struct {
	BaseURL     string
	HTTPClient  *http.Client
	Retry       RetryPolicy
	RefreshPath string

	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewSDKClient creates a client from cfg, filling in defaults.
func NewSDKClient(cfg Config) *SDKClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.RefreshPath == "" {
		cfg.RefreshPath = DefaultRefreshPath
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := &SDKClient{
		BaseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		HTTPClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: slogx.NewTransport(cfg.Transport, cfg.Logger),
		},
		Retry:       cfg.Retry,
		RefreshPath: cfg.RefreshPath,
		logger:      cfg.Logger,
	}

	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.RateBurst, 1))
	}

	return c
}

// NewSession binds the client to a TokenManager. Every Session request goes
// through the manager for a valid token.
func (c *SDKClient) NewSession(tokens *TokenManager) *Session {
	return &Session{client: c, tokens: tokens}
}
