package app

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aussiebroadwan/hms/internal/hms/store"
	"github.com/aussiebroadwan/hms/pkg/hmssdk"
)

type Config struct {
	BaseURL          string        // REST API base URL (default: http://localhost:8080/api)
	Timeout          time.Duration // Per-attempt HTTP timeout (default: 30s)
	RetryAttempts    int           // Attempts for idempotent requests (default: 3)
	RetryBaseDelay   time.Duration // First backoff delay (default: 300ms)
	RetryMaxDelay    time.Duration // Backoff cap (default: 5s)
	RateLimit        float64       // Outgoing requests per second, 0 = unlimited (default: 0)
	RateBurst        int           // Limiter burst (default: 5)
	RefreshPath      string        // Endpoint used to obtain a rotated token (default: /auth/me)
	RefreshThreshold time.Duration // Remaining lifetime that triggers a refresh (default: 2h)
	MonitorInterval  time.Duration // Background check interval for `watch` (default: 30m)

	StoreDriver  string // Token store driver: memory, sqlite, redis, postgres (default: sqlite)
	TokenSlot    string // Name of the stored token (default: token)
	DatabaseFile string // SQLite file for the sqlite driver (default: <user config dir>/hms/session.db)
	RedisURL     string // Redis URL for the redis driver (default: redis://localhost:6379/0)
	RedisPrefix  string // Redis key prefix (default: hms:session:)
	DatabaseURL  string // Postgres URL for the postgres driver

	Env                 string        // Environment (dev, staging, prod) (default: prod)
	LogLevel            string        // Log level (debug, info, warn, error) (default: warn)
	LogFormat           string        // Log format (json, text) (default: text)
	ShutdownGracePeriod time.Duration // How long `watch` waits for an in-flight check (default: 10s)
}

func LoadConfig() Config {
	return Config{
		BaseURL:          getEnvOrDefault("HMS_API_URL", "http://localhost:8080/api"),
		Timeout:          getEnvDurationOrDefault("HMS_TIMEOUT", hmssdk.DefaultTimeout),
		RetryAttempts:    getEnvIntOrDefault("HMS_RETRY_ATTEMPTS", 3),
		RetryBaseDelay:   getEnvDurationOrDefault("HMS_RETRY_BASE_DELAY", 300*time.Millisecond),
		RetryMaxDelay:    getEnvDurationOrDefault("HMS_RETRY_MAX_DELAY", 5*time.Second),
		RateLimit:        getEnvFloatOrDefault("HMS_RATE_LIMIT", 0),
		RateBurst:        getEnvIntOrDefault("HMS_RATE_BURST", 5),
		RefreshPath:      getEnvOrDefault("HMS_REFRESH_PATH", hmssdk.DefaultRefreshPath),
		RefreshThreshold: getEnvDurationOrDefault("HMS_REFRESH_THRESHOLD", hmssdk.DefaultRefreshThreshold),
		MonitorInterval:  getEnvDurationOrDefault("HMS_MONITOR_INTERVAL", hmssdk.DefaultMonitorInterval),

		StoreDriver:  getEnvOrDefault("HMS_STORE", store.DriverSQLite),
		TokenSlot:    getEnvOrDefault("HMS_TOKEN_SLOT", "token"),
		DatabaseFile: getEnvOrDefault("HMS_DATABASE_FILE", defaultDatabaseFile()),
		RedisURL:     getEnvOrDefault("HMS_REDIS_URL", "redis://localhost:6379/0"),
		RedisPrefix:  getEnvOrDefault("HMS_REDIS_PREFIX", "hms:session:"),
		DatabaseURL:  os.Getenv("HMS_DATABASE_URL"),

		Env:                 getEnvOrDefault("ENV", "prod"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "warn"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "text"),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

// RetryPolicy builds the single retry policy shared by every request.
func (c Config) RetryPolicy() hmssdk.RetryPolicy {
	p := hmssdk.DefaultRetryPolicy()
	if c.RetryAttempts > 0 {
		p.MaxAttempts = c.RetryAttempts
	}
	if c.RetryBaseDelay > 0 {
		p.BaseDelay = c.RetryBaseDelay
	}
	if c.RetryMaxDelay > 0 {
		p.MaxDelay = c.RetryMaxDelay
	}
	return p
}

// StoreConfig maps the CLI settings onto the store factory.
func (c Config) StoreConfig() store.Config {
	return store.Config{
		Driver:      c.StoreDriver,
		Slot:        c.TokenSlot,
		SQLiteDSN:   "file:" + c.DatabaseFile,
		RedisURL:    c.RedisURL,
		RedisPrefix: c.RedisPrefix,
		PostgresURL: c.DatabaseURL,
	}
}

func defaultDatabaseFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "hms-session.db"
	}
	return filepath.Join(dir, "hms", "session.db")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if f, err := strconv.ParseFloat(value, 64); err == nil && f >= 0 {
		return f
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
