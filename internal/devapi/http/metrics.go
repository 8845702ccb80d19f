package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aussiebroadwan/hms/pkg/httpx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Token issue reasons used as the "reason" label.
const (
	issueReasonLogin    = "login"
	issueReasonRotation = "rotation"
)

// Metrics holds the backend's Prometheus collectors on a private registry.
// A nil *Metrics records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	TokensIssued        *prometheus.CounterVec
	TokensRevoked       prometheus.Counter
	LoginFailures       prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hms_devapi",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests by route and status.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "hms_devapi",
				Name:      "http_request_duration_seconds",
				Help:      "Histogram of HTTP request latency by route.",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"method", "route"},
		),
		TokensIssued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hms_devapi",
				Name:      "tokens_issued_total",
				Help:      "Access tokens issued, by login or implicit rotation.",
			},
			[]string{"reason"},
		),
		TokensRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hms_devapi",
			Name:      "tokens_revoked_total",
			Help:      "Access tokens revoked by logout.",
		}),
		LoginFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hms_devapi",
			Name:      "login_failures_total",
			Help:      "Rejected login attempts.",
		}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.TokensIssued,
		m.TokensRevoked,
		m.LoginFailures,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Instrument records count and latency for one route. The route label is
// the registered pattern, so path parameters do not explode cardinality.
func (m *Metrics) Instrument(route string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

func (m *Metrics) tokenIssued(reason string) {
	if m != nil {
		m.TokensIssued.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) tokenRevoked() {
	if m != nil {
		m.TokensRevoked.Inc()
	}
}

func (m *Metrics) loginFailed() {
	if m != nil {
		m.LoginFailures.Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter

	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
