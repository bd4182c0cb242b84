// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string
	RedisAddr   string // "" = in-process cache and locks
	RedisPass   string

	CompletedSessionTTL time.Duration
	LockTimeout         time.Duration
	LockHoldTTL         time.Duration
	ReconcileInterval   time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		FrontendURL:         getEnv("FRONTEND_URL", ""),
		DBPath:              getEnv("DB_PATH", "./data/quickchess.db"),
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		RedisPass:           getEnv("REDIS_PASSWORD", ""),
		CompletedSessionTTL: getEnvDuration("COMPLETED_SESSION_TTL", time.Hour),
		LockTimeout:         getEnvDuration("LOCK_TIMEOUT", 5*time.Second),
		LockHoldTTL:         getEnvDuration("LOCK_HOLD_TTL", 30*time.Second),
		ReconcileInterval:   getEnvDuration("RECONCILE_INTERVAL", 15*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.CompletedSessionTTL <= 0 {
		return fmt.Errorf("COMPLETED_SESSION_TTL must be > 0")
	}
	if c.LockTimeout <= 0 {
		return fmt.Errorf("LOCK_TIMEOUT must be > 0")
	}
	if c.LockHoldTTL < c.LockTimeout {
		return fmt.Errorf("LOCK_HOLD_TTL must be >= LOCK_TIMEOUT")
	}
	if c.ReconcileInterval <= 0 {
		return fmt.Errorf("RECONCILE_INTERVAL must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env == "development"
	}
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// UseRedis reports whether the Redis-backed cache and lock tiers are
// configured.
func (c *Config) UseRedis() bool {
	return c.RedisAddr != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	trimmed := strings.TrimSpace(value)
	if d, err := time.ParseDuration(trimmed); err == nil {
		return d
	}
	// Bare numbers are read as seconds.
	if n, err := strconv.Atoi(trimmed); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
