// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values for the API server.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to ["http://localhost:5173"] (Vite dev server).
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string

	// MaxUploadBytes caps the size of an upload request body. Defaults to
	// 32 MiB, which covers multi-hour FIT recordings with slack to spare.
	MaxUploadBytes int64

	// IngestWorkers bounds how many uploaded files are processed
	// concurrently. Defaults to 4.
	IngestWorkers int

	// IngestTimeout is the per-file processing deadline. A file that has
	// not reached a terminal state by then is marked failed. Defaults to 30s.
	IngestTimeout time.Duration
}

// Load reads configuration from environment variables and returns a Config.
// Returns an error listing any required variables that are not set.
func Load() (Config, error) {
	cfg := Config{
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
	}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	var err error
	cfg.MaxUploadBytes, err = getEnvInt64("MAX_UPLOAD_BYTES", 32<<20)
	if err != nil {
		return Config{}, err
	}

	workers, err := getEnvInt64("INGEST_WORKERS", 4)
	if err != nil {
		return Config{}, err
	}
	cfg.IngestWorkers = int(workers)

	timeoutSec, err := getEnvInt64("INGEST_TIMEOUT_SECONDS", 30)
	if err != nil {
		return Config{}, err
	}
	cfg.IngestTimeout = time.Duration(timeoutSec) * time.Second

	return cfg, nil
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt64 parses an integer environment variable, falling back when unset.
// A set-but-unparseable value is a configuration error, not a silent default.
func getEnvInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
