package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "PORT", "REDIS_URL", "BACKLOG_SIZE", "PING_INTERVAL",
		"STREAM_BUFFER", "INGEST_RATE_LIMIT", "MAX_BODY_BYTES", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port: got %q", cfg.Port)
	}
	if cfg.BacklogSize != 50 {
		t.Errorf("BacklogSize: got %d", cfg.BacklogSize)
	}
	if cfg.PingInterval != 15*time.Second {
		t.Errorf("PingInterval: got %v", cfg.PingInterval)
	}
	if cfg.RedisURL != "" || cfg.IngestRateLimit != 0 {
		t.Errorf("throttling should be off by default, got %q / %d", cfg.RedisURL, cfg.IngestRateLimit)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("BACKLOG_SIZE", "10")
	t.Setenv("PING_INTERVAL", "5s")
	t.Setenv("INGEST_RATE_LIMIT", "20")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "9000" || cfg.BacklogSize != 10 || cfg.PingInterval != 5*time.Second {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
	if cfg.RedisURL != "redis://localhost:6379/0" || cfg.IngestRateLimit != 20 {
		t.Errorf("throttle settings not applied: %+v", cfg)
	}
	if level, _ := cfg.SlogLevel(); level != slog.LevelDebug {
		t.Errorf("expected debug level, got %v", level)
	}
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("BACKLOG_SIZE", "lots")
	t.Setenv("PING_INTERVAL", "often")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.BacklogSize != 50 || cfg.PingInterval != 15*time.Second {
		t.Errorf("expected defaults for unparsable values, got %+v", cfg)
	}
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "relay.yaml")
	data := []byte("port: \"7000\"\nbacklogSize: 25\npingInterval: 30s\nlogLevel: warn\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("BACKLOG_SIZE", "40")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "7000" {
		t.Errorf("Port from file: got %q", cfg.Port)
	}
	if cfg.PingInterval != 30*time.Second {
		t.Errorf("PingInterval from file: got %v", cfg.PingInterval)
	}
	if cfg.BacklogSize != 40 {
		t.Errorf("env should win over file, got %d", cfg.BacklogSize)
	}
	if cfg.StreamBuffer != 64 {
		t.Errorf("unset file keys should keep defaults, got %d", cfg.StreamBuffer)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.Port = "" }},
		{"zero backlog", func(c *Config) { c.BacklogSize = 0 }},
		{"zero ping interval", func(c *Config) { c.PingInterval = 0 }},
		{"zero stream buffer", func(c *Config) { c.StreamBuffer = 0 }},
		{"negative rate limit", func(c *Config) { c.IngestRateLimit = -1 }},
		{"zero body limit", func(c *Config) { c.MaxBodyBytes = 0 }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should be valid: %v", err)
	}
}
