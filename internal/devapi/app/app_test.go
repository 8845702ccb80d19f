package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/hms/pkg/hmssdk"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Port:                 0,
		Secret:               "0123456789abcdef0123456789abcdef",
		Issuer:               "hms-devapi",
		TokenTTL:             24 * time.Hour,
		RotationWindow:       2 * time.Hour,
		SeedPassword:         "seed-password",
		HousekeepingInterval: time.Hour,
		Env:                  "test",
		LogLevel:             "error",
		LogFormat:            "json",
		ShutdownGracePeriod:  time.Second,
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("DEVAPI_PORT", "9090")
	t.Setenv("DEVAPI_TOKEN_TTL", "30m")
	t.Setenv("DEVAPI_ROTATION_WINDOW", "10") // minutes
	t.Setenv("DEVAPI_ISSUER", "")

	cfg := LoadConfig()
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, 30*time.Minute, cfg.TokenTTL)
	require.Equal(t, 10*time.Minute, cfg.RotationWindow)
	require.Equal(t, "hms-devapi", cfg.Issuer)
	require.Equal(t, time.Hour, cfg.HousekeepingInterval)
}

func TestNew_RejectsShortSecret(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Secret = "too-short"

	_, err := New(cfg)
	require.ErrorContains(t, err, "at least 32 bytes")
}

func TestNew_ServesSeededBackend(t *testing.T) {
	t.Parallel()

	app, err := New(testConfig())
	require.NoError(t, err)

	body, _ := json.Marshal(hmssdk.LoginRequest{Username: "admin", Password: "seed-password"})
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp hmssdk.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "admin", resp.User.Role)

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	rec = httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestNew_GeneratesSecrets(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Secret = ""
	cfg.SeedPassword = ""

	app, err := New(cfg)
	require.NoError(t, err)
	require.NotNil(t, app.verifier)
}
