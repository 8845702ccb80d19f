package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/hms/internal/devapi/service"
	"github.com/aussiebroadwan/hms/pkg/cryptox"
	"github.com/aussiebroadwan/hms/pkg/hmssdk"
	"github.com/aussiebroadwan/hms/pkg/httpx"
	"github.com/aussiebroadwan/hms/pkg/jwtx"
	"github.com/aussiebroadwan/hms/pkg/slogx"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "hms-devapi"
	testPassword = "correct horse battery"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// newTestRouter builds a seeded router whose tokens live for ttl.
func newTestRouter(t *testing.T, ttl time.Duration) *Router {
	t.Helper()

	signer, err := jwtx.NewSignerHS256(testSecret)
	require.NoError(t, err)

	hasher := cryptox.NewPasswordHasher("")
	hasher.Params.Memory = 1024
	hasher.Params.Iterations = 1

	users := service.NewUserService(hasher)
	require.NoError(t, users.SeedStaff(testPassword))

	hospital := service.NewHospitalService()
	hospital.Seed()

	r := NewRouter(jwtx.NewVerifierHS256(testSecret, testIssuer), "v-test", slogx.Discard())
	r.TokenService = &service.TokenService{
		Signer:         signer,
		Issuer:         testIssuer,
		AccessTTL:      ttl,
		RotationWindow: 2 * time.Hour,
		Revoked:        service.NewRevocationList(),
	}
	r.UserService = users
	r.HospitalService = hospital
	r.ApplyRoutes()

	return r
}

func serve(r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, r http.Handler, username string) string {
	t.Helper()

	rec := serve(r, http.MethodPost, "/api/auth/login", "", hmssdk.LoginRequest{Username: username, Password: testPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp hmssdk.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, username, resp.User.Username)
	return resp.Token
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httpx.ErrorBody {
	t.Helper()

	var body httpx.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestLogin(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, 24*time.Hour)

	token := login(t, r, "doctor")
	claims, err := jwtx.Inspect(token)
	require.NoError(t, err)
	require.Equal(t, service.RoleDoctor, claims.Role)
	require.Equal(t, testIssuer, claims.Issuer)

	rec := serve(r, http.MethodPost, "/api/auth/login", "", hmssdk.LoginRequest{Username: "doctor", Password: "nope"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, httpx.ErrCodeInvalidCredentials, decodeError(t, rec).Error)

	rec = serve(r, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "doctor"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(r, http.MethodPost, "/api/auth/login", "", map[string]string{"user": "doctor", "password": "x"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMe_RequiresToken(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, 24*time.Hour)

	rec := serve(r, http.MethodGet, "/api/auth/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), "invalid_token")
	require.Equal(t, httpx.ErrCodeInvalidToken, decodeError(t, rec).Error)

	rec = serve(r, http.MethodGet, "/api/auth/me", "garbage", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMe_NoRotationOutsideWindow(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, 24*time.Hour)
	token := login(t, r, "nurse")

	rec := serve(r, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Header().Get(hmssdk.RotatedTokenHeader))

	var me hmssdk.MeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	require.Equal(t, "nurse", me.User.Username)
	require.Empty(t, me.Token)
	require.NotContains(t, rec.Body.String(), `"token"`)
}

func TestRotation_InsideWindow(t *testing.T) {
	t.Parallel()

	// Every token starts inside the rotation window.
	r := newTestRouter(t, time.Hour)
	token := login(t, r, "admin")

	rec := serve(r, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	header := rec.Header().Get(hmssdk.RotatedTokenHeader)
	require.NotEmpty(t, header)
	require.NotEqual(t, token, header)

	var me hmssdk.MeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	require.Equal(t, header, me.Token)

	rotated, err := jwtx.Inspect(header)
	require.NoError(t, err)
	require.Equal(t, "admin", rotated.Username)
	require.Equal(t, service.RoleAdmin, rotated.Role)

	// Ordinary resources rotate through the header only.
	rec = serve(r, http.MethodGet, "/api/stock", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get(hmssdk.RotatedTokenHeader))

	// The old token keeps working until it expires.
	rec = serve(r, http.MethodGet, "/api/patients", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestLogout_RevokesToken(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, 24*time.Hour)
	token := login(t, r, "cashier")
	other := login(t, r, "cashier")

	rec := serve(r, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(r, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "token revoked", decodeError(t, rec).Message)

	// Only that token's jti is revoked.
	rec = serve(r, http.MethodGet, "/api/auth/me", other, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRoles(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, 24*time.Hour)
	doctor := login(t, r, "doctor")
	pdg := login(t, r, "pdg")

	rec := serve(r, http.MethodGet, "/api/dashboard", doctor, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, httpx.ErrCodeForbidden, decodeError(t, rec).Error)

	rec = serve(r, http.MethodGet, "/api/dashboard", pdg, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var d hmssdk.DashboardSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	require.Equal(t, 3, d.Patients)

	require.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/api/hr/requests", doctor, nil).Code)
	require.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/hr/requests", pdg, nil).Code)
	require.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/api/invoices", doctor, nil).Code)
	require.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/maternity", doctor, nil).Code)
}

func TestPatients(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, 24*time.Hour)
	token := login(t, r, "doctor")

	rec := serve(r, http.MethodPost, "/api/patients", token, hmssdk.CreatePatientRequest{
		FirstName: "Yaw", LastName: "Boateng", DateOfBirth: "2001-06-15",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created hmssdk.Patient
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "/api/patients/"+created.ID, rec.Header().Get("Location"))

	rec = serve(r, http.MethodGet, "/api/patients/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(r, http.MethodGet, "/api/patients/unknown", token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, httpx.ErrCodeNotFound, decodeError(t, rec).Error)

	rec = serve(r, http.MethodPost, "/api/patients", token, hmssdk.CreatePatientRequest{
		FirstName: "Yaw", LastName: "Boateng", DateOfBirth: "yesterday",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(r, http.MethodGet, "/api/patients", token, nil)
	var list []hmssdk.Patient
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 4)

	hr := login(t, r, "hr")
	rec = serve(r, http.MethodPost, "/api/patients", hr, hmssdk.CreatePatientRequest{
		FirstName: "A", LastName: "B", DateOfBirth: "2000-01-01",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListHandler_EmptyIsArray(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	ListHandler(func() []hmssdk.Invoice { return nil }).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestHealth(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, 24*time.Hour)

	rec := serve(r, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	require.NotEmpty(t, rec.Header().Get(slogx.RequestIDHeader))

	var h hmssdk.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	require.Equal(t, "ok", h.Status)
	require.Equal(t, "v-test", h.Version)
}

func TestLogin_RateLimitedPerUsername(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, 24*time.Hour)
	wrong := hmssdk.LoginRequest{Username: "doctor", Password: "wrong"}

	for range httpx.LoginLimit.Burst {
		rec := serve(r, http.MethodPost, "/api/auth/login", "", wrong)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := serve(r, http.MethodPost, "/api/auth/login", "", wrong)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, httpx.ErrCodeRateLimited, decodeError(t, rec).Error)

	// The rest of the ward on the same workstation is unaffected.
	login(t, r, "nurse")
}

func TestSwaggerDocs(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, 24*time.Hour)

	rec := serve(r, http.MethodGet, "/swagger/doc.json", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var doc struct {
		BasePath string `json:"basePath"`
		Info     struct {
			Title string `json:"title"`
		} `json:"info"`
		Paths map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	require.Equal(t, APIPrefix, doc.BasePath)
	require.Equal(t, "HMS Development API", doc.Info.Title)
	for _, path := range []string{"/auth/login", "/auth/me", "/auth/logout", "/patients", "/patients/{id}", "/invoices", "/stock", "/maternity", "/hr/requests", "/dashboard", "/health"} {
		require.Contains(t, doc.Paths, path)
	}

	rec = serve(r, http.MethodGet, "/swagger/index.html", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "swagger-ui")
}
