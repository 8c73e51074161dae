package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the core runtime configuration for the service.
// Values are sourced from environment variables, with defaults where
// the service can run without them. See .env.example.
type Config struct {
	// DatabaseURL is the PostgreSQL connection string. It comes from
	// DATABASE_URL, or from the file named by DATABASE_URL_FILE when the
	// former is unset (docker/k8s secrets).
	DatabaseURL string

	// DatabaseInsecureTLS forces TLS to the database but accepts the
	// server certificate without verifying its chain. Needed for RDS
	// style self-signed certificates.
	DatabaseInsecureTLS bool

	DatabaseMaxConns  int32
	PoolCheckInterval time.Duration

	GolangServiceURL     string
	GolangServiceTimeout time.Duration

	Port string

	LogLevel  string
	LogFormat string

	ShutdownTimeout time.Duration
}

// Default values
const (
	defaultGolangServiceURL     = "http://localhost:8000"
	defaultGolangServiceTimeout = 5 * time.Second
	defaultPort                 = "3000"
	defaultMaxConns             = 10
	defaultPoolCheckInterval    = 30 * time.Second
	defaultShutdownTimeout      = 10 * time.Second
)

// Load reads configuration from environment variables and applies defaults.
// It fails when no database connection string can be resolved.
func Load() (*Config, error) {
	dsn, err := databaseURL()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:          dsn,
		DatabaseInsecureTLS:  getenvBool("DATABASE_TLS_INSECURE", true),
		DatabaseMaxConns:     getenvInt32("DATABASE_MAX_CONNS", defaultMaxConns),
		PoolCheckInterval:    getenvDuration("DATABASE_POOL_CHECK_INTERVAL", defaultPoolCheckInterval),
		GolangServiceURL:     strings.TrimRight(getenv("GOLANG_SERVICE_URL", defaultGolangServiceURL), "/"),
		GolangServiceTimeout: getenvDuration("GOLANG_SERVICE_TIMEOUT", defaultGolangServiceTimeout),
		Port:                 getenv("PORT", defaultPort),
		LogLevel:             getenv("LOG_LEVEL", "info"),
		LogFormat:            getenv("LOG_FORMAT", "text"),
		ShutdownTimeout:      getenvDuration("SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
	}

	return cfg, nil
}

// ListenAddr is the address the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return ":" + c.Port
}

func databaseURL() (string, error) {
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		return v, nil
	}
	path := os.Getenv("DATABASE_URL_FILE")
	if path == "" {
		return "", errors.New("DATABASE_URL or DATABASE_URL_FILE is required")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read DATABASE_URL_FILE: %w", err)
	}
	dsn := strings.TrimSpace(string(b))
	if dsn == "" {
		return "", fmt.Errorf("DATABASE_URL_FILE %s is empty", path)
	}
	return dsn, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getenvInt32 falls back to def for values that are not positive or do
// not fit in an int32.
func getenvInt32(key string, def int32) int32 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil && n > 0 {
			return int32(n)
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// getenvDuration accepts values like "30s" or "500ms", or a bare number
// of seconds.
func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return def
}
