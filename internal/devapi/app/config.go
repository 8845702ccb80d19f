package app

import (
	"os"
	"strconv"
	"time"

	"github.com/aussiebroadwan/hms/pkg/jwtx"
)

type Config struct {
	Port                 int           // HTTP server port (default: 8080)
	Secret               string        // HS256 signing secret, at least 32 bytes (default: random per process)
	Issuer               string        // JWT issuer (default: hms-devapi)
	TokenTTL             time.Duration // Access token lifetime (default: 24h)
	RotationWindow       time.Duration // Remaining lifetime under which tokens are rotated (default: 2h)
	SeedPassword         string        // Password of every seeded account (default: random, logged at startup)
	Pepper               string        // Password hashing pepper (default: none)
	HousekeepingInterval time.Duration // Revocation pruning interval (default: 1h)
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	return Config{
		Port:                 getEnvIntOrDefault("DEVAPI_PORT", 8080),
		Secret:               getEnvOrDefault("DEVAPI_SECRET", ""),
		Issuer:               getEnvOrDefault("DEVAPI_ISSUER", "hms-devapi"),
		TokenTTL:             getEnvDurationOrDefault("DEVAPI_TOKEN_TTL", jwtx.DefaultAccessTokenTTL),
		RotationWindow:       getEnvDurationOrDefault("DEVAPI_ROTATION_WINDOW", jwtx.DefaultRotationWindow),
		SeedPassword:         getEnvOrDefault("DEVAPI_SEED_PASSWORD", ""),
		Pepper:               getEnvOrDefault("DEVAPI_PEPPER", ""),
		HousekeepingInterval: getEnvDurationOrDefault("DEVAPI_HOUSEKEEPING_INTERVAL", time.Hour),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
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

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Fall back to parsing as minutes (integer)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
