package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected defaults to load, got %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Port)
	}
	if cfg.DBPath != "./data/quickchess.db" {
		t.Errorf("Expected default db path, got %s", cfg.DBPath)
	}
	if cfg.UseRedis() {
		t.Error("Expected Redis disabled by default")
	}
	if cfg.CompletedSessionTTL != time.Hour {
		t.Errorf("Expected default completed-session TTL of 1h, got %s", cfg.CompletedSessionTTL)
	}
	if cfg.LockTimeout != 5*time.Second {
		t.Errorf("Expected default lock timeout of 5s, got %s", cfg.LockTimeout)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("COMPLETED_SESSION_TTL", "30m")
	t.Setenv("LOCK_TIMEOUT", "2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected configuration to load, got %v", err)
	}

	if cfg.Port != "9000" {
		t.Errorf("Expected port 9000, got %s", cfg.Port)
	}
	if !cfg.UseRedis() {
		t.Error("Expected Redis enabled when REDIS_ADDR is set")
	}
	if cfg.CompletedSessionTTL != 30*time.Minute {
		t.Errorf("Expected 30m TTL, got %s", cfg.CompletedSessionTTL)
	}
	// Bare numbers are seconds.
	if cfg.LockTimeout != 2*time.Second {
		t.Errorf("Expected 2s lock timeout, got %s", cfg.LockTimeout)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Port:                "8080",
			DBPath:              "./data/test.db",
			CompletedSessionTTL: time.Hour,
			LockTimeout:         5 * time.Second,
			LockHoldTTL:         30 * time.Second,
			ReconcileInterval:   15 * time.Second,
		}
	}

	if err := base().Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}

	cfg := base()
	cfg.Port = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for empty port")
	}

	cfg = base()
	cfg.DBPath = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for empty db path")
	}

	cfg = base()
	cfg.CompletedSessionTTL = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for zero TTL")
	}

	cfg = base()
	cfg.LockHoldTTL = time.Second
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error when hold TTL is below the wait timeout")
	}
}

func TestIsDevelopment(t *testing.T) {
	cfg := &Config{FrontendURL: ""}
	if !cfg.IsDevelopment() {
		t.Error("Expected empty frontend URL to mean development")
	}

	cfg = &Config{FrontendURL: "http://localhost:3000"}
	if !cfg.IsDevelopment() {
		t.Error("Expected localhost to mean development")
	}

	cfg = &Config{FrontendURL: "https://quickchess.example.com"}
	if cfg.IsDevelopment() {
		t.Error("Expected production URL to mean production")
	}

	t.Setenv("APP_ENV", "production")
	cfg = &Config{FrontendURL: ""}
	if cfg.IsDevelopment() {
		t.Error("Expected APP_ENV to win over URL detection")
	}
}
