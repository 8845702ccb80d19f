package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/hms/pkg/hmssdk"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_TokenCounters(t *testing.T) {
	t.Parallel()

	// A one hour token sits inside the two hour rotation window.
	r := newTestRouter(t, time.Hour)
	m := r.Metrics

	rec := serve(r, http.MethodPost, "/api/auth/login", "", hmssdk.LoginRequest{Username: "doctor", Password: "wrong"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.InDelta(t, 1, testutil.ToFloat64(m.LoginFailures), 0)

	token := login(t, r, "doctor")
	require.InDelta(t, 1, testutil.ToFloat64(m.TokensIssued.WithLabelValues(issueReasonLogin)), 0)

	rec = serve(r, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.InDelta(t, 1, testutil.ToFloat64(m.TokensIssued.WithLabelValues(issueReasonRotation)), 0)

	rec = serve(r, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.InDelta(t, 1, testutil.ToFloat64(m.TokensRevoked), 0)
}

func TestMetrics_RequestsByRoutePattern(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, 24*time.Hour)
	token := login(t, r, "doctor")

	require.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/api/patients/missing", token, nil).Code)
	require.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/api/invoices", token, nil).Code)

	route := "GET " + APIPrefix + "/patients/{id}"
	require.InDelta(t, 1, testutil.ToFloat64(r.Metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, route, "404")), 0)

	route = "GET " + APIPrefix + "/invoices"
	require.InDelta(t, 1, testutil.ToFloat64(r.Metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, route, "403")), 0)
}

func TestMetrics_Endpoint(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, 24*time.Hour)
	login(t, r, "admin")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.True(t, strings.Contains(body, `hms_devapi_tokens_issued_total{reason="login"} 1`), body)
	require.Contains(t, body, "hms_devapi_http_requests_total")
}

func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.tokenIssued(issueReasonLogin)
	m.tokenRevoked()
	m.loginFailed()

	called := false
	h := m.Instrument("GET /x")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	require.True(t, called)
}
