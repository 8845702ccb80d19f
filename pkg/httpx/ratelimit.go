package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig allows RequestsPerWindow requests per Window for each key,
// with short bursts of up to Burst requests.
type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
	Burst             int
}

func (c RateLimitConfig) limit() rate.Limit {
	if c.Window <= 0 {
		return rate.Inf
	}
	return rate.Limit(float64(c.RequestsPerWindow) / c.Window.Seconds())
}

// Rate limit profiles. Each can be overridden with RATELIMIT_<NAME>_REQUESTS,
// RATELIMIT_<NAME>_WINDOW_SEC and RATELIMIT_<NAME>_BURST.
var (
	// LoginLimit applies per workstation and username, so one clinician
	// mistyping a password does not lock out the rest of the ward.
	LoginLimit = RateLimitConfig{RequestsPerWindow: 10, Window: time.Minute, Burst: 5}

	// APILimit applies per authenticated user. Dashboards poll several
	// resources at once, hence the large burst.
	APILimit = RateLimitConfig{RequestsPerWindow: 300, Window: time.Minute, Burst: 60}

	// PublicLimit applies per IP to unauthenticated probes such as /health.
	PublicLimit = RateLimitConfig{RequestsPerWindow: 1000, Window: time.Minute, Burst: 1000}
)

func init() {
	LoginLimit = ParseRateLimitFromEnv("LOGIN", LoginLimit)
	APILimit = ParseRateLimitFromEnv("API", APILimit)
	PublicLimit = ParseRateLimitFromEnv("PUBLIC", PublicLimit)
}

// ParseRateLimitFromEnv overlays RATELIMIT_{name}_* variables on def.
// Missing, malformed or non-positive values keep the default.
func ParseRateLimitFromEnv(name string, def RateLimitConfig) RateLimitConfig {
	cfg := def
	if n, ok := positiveEnvInt("RATELIMIT_" + name + "_REQUESTS"); ok {
		cfg.RequestsPerWindow = n
	}
	if n, ok := positiveEnvInt("RATELIMIT_" + name + "_WINDOW_SEC"); ok {
		cfg.Window = time.Duration(n) * time.Second
	}
	if n, ok := positiveEnvInt("RATELIMIT_" + name + "_BURST"); ok {
		cfg.Burst = n
	}
	return cfg
}

func positiveEnvInt(key string) (int, bool) {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// KeyFunc groups requests into rate limit buckets. An empty key means the
// request is not limited.
type KeyFunc func(*http.Request) string

// ClientIP returns the caller's address, honouring X-Forwarded-For and
// X-Real-IP set by the hospital's reverse proxy.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// UserKey buckets authenticated requests by user ID, and anonymous ones by IP.
func UserKey(r *http.Request) string {
	if userID, ok := r.Context().Value(CtxKeyUserID).(string); ok && userID != "" {
		return "user:" + userID
	}
	return "ip:" + ClientIP(r)
}

// LoginKey buckets login attempts by IP and the lowercased username in the
// JSON body. The body is restored for the handler. Bodies without a readable
// username fall back to the IP alone.
func LoginKey(r *http.Request) string {
	ip := ClientIP(r)
	if r.Body == nil {
		return "ip:" + ip
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return "ip:" + ip
	}

	var login struct {
		Username string `json:"username"`
	}
	if json.Unmarshal(body, &login) != nil || strings.TrimSpace(login.Username) == "" {
		return "ip:" + ip
	}
	return "login:" + ip + ":" + strings.ToLower(strings.TrimSpace(login.Username))
}

// bucket is one key's limiter plus when it was last used.
type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// buckets holds the limiters of one middleware instance. Buckets idle for
// longer than idleAfter are swept on the next sweep tick.
type buckets struct {
	mu        sync.Mutex
	cfg       RateLimitConfig
	byKey     map[string]*bucket
	idleAfter time.Duration
	nextSweep time.Time
	now       func() time.Time
}

func newBuckets(cfg RateLimitConfig) *buckets {
	idle := max(2*cfg.Window, time.Minute)
	return &buckets{
		cfg:       cfg,
		byKey:     make(map[string]*bucket),
		idleAfter: idle,
		nextSweep: time.Now().Add(idle),
		now:       time.Now,
	}
}

// take spends one token for key. When none is left it reports how long the
// caller should wait.
func (b *buckets) take(key string) (bool, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if now.After(b.nextSweep) {
		for k, bk := range b.byKey {
			if now.Sub(bk.lastSeen) > b.idleAfter {
				delete(b.byKey, k)
			}
		}
		b.nextSweep = now.Add(b.idleAfter)
	}

	bk, ok := b.byKey[key]
	if !ok {
		bk = &bucket{limiter: rate.NewLimiter(b.cfg.limit(), b.cfg.Burst)}
		b.byKey[key] = bk
	}
	bk.lastSeen = now

	if bk.limiter.AllowN(now, 1) {
		return true, 0
	}

	if bk.limiter.Limit() <= 0 {
		return false, b.cfg.Window
	}
	missing := 1 - bk.limiter.TokensAt(now)
	return false, time.Duration(missing / float64(bk.limiter.Limit()) * float64(time.Second))
}

// RateLimitMiddleware rejects requests over cfg with 429 and a Retry-After
// header. Requests are grouped by key.
func RateLimitMiddleware(cfg RateLimitConfig, key KeyFunc) Middleware {
	b := newBuckets(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}

			ok, wait := b.take(k)
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			retryAfter := max(int(math.Ceil(wait.Seconds())), 1)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.RequestsPerWindow))
			w.Header().Set("X-RateLimit-Window", cfg.Window.String())

			loggerFrom(r).Warn("rate limit exceeded",
				"key", k,
				"path", r.URL.Path,
				"retry_after", retryAfter,
			)
			WriteError(w, http.StatusTooManyRequests, ErrCodeRateLimited,
				"Too many requests. Please try again later.")
		})
	}
}

// RateLimitByIP limits each client address.
func RateLimitByIP(cfg RateLimitConfig) Middleware {
	return RateLimitMiddleware(cfg, func(r *http.Request) string { return "ip:" + ClientIP(r) })
}

// RateLimitByUser limits each authenticated user across workstations.
func RateLimitByUser(cfg RateLimitConfig) Middleware {
	return RateLimitMiddleware(cfg, UserKey)
}

// RateLimitLogin limits login attempts per workstation and username.
func RateLimitLogin(cfg RateLimitConfig) Middleware {
	return RateLimitMiddleware(cfg, LoginKey)
}
