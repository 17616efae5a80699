package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the relay.
type Config struct {
	Port            string        `yaml:"port"`
	RedisURL        string        `yaml:"redisURL"`
	BacklogSize     int           `yaml:"backlogSize"`
	PingInterval    time.Duration `yaml:"pingInterval"`
	StreamBuffer    int           `yaml:"streamBuffer"`
	IngestRateLimit int           `yaml:"ingestRateLimit"`
	MaxBodyBytes    int64         `yaml:"maxBodyBytes"`
	LogLevel        string        `yaml:"logLevel"`
}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() Config {
	return Config{
		Port:         "8080",
		BacklogSize:  50,
		PingInterval: 15 * time.Second,
		StreamBuffer: 64,
		MaxBodyBytes: 1 << 20,
		LogLevel:     "info",
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE (if set), then environment variables.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.BacklogSize = getEnvInt("BACKLOG_SIZE", cfg.BacklogSize)
	cfg.PingInterval = getEnvDuration("PING_INTERVAL", cfg.PingInterval)
	cfg.StreamBuffer = getEnvInt("STREAM_BUFFER", cfg.StreamBuffer)
	cfg.IngestRateLimit = getEnvInt("INGEST_RATE_LIMIT", cfg.IngestRateLimit)
	cfg.MaxBodyBytes = int64(getEnvInt("MAX_BODY_BYTES", int(cfg.MaxBodyBytes)))
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if c.BacklogSize < 1 {
		return fmt.Errorf("backlog size must be positive, got %d", c.BacklogSize)
	}
	if c.PingInterval <= 0 {
		return fmt.Errorf("ping interval must be positive, got %s", c.PingInterval)
	}
	if c.StreamBuffer < 1 {
		return fmt.Errorf("stream buffer must be positive, got %d", c.StreamBuffer)
	}
	if c.IngestRateLimit < 0 {
		return fmt.Errorf("ingest rate limit must not be negative, got %d", c.IngestRateLimit)
	}
	if c.MaxBodyBytes < 1 {
		return fmt.Errorf("max body bytes must be positive, got %d", c.MaxBodyBytes)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return level, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
	}
	return fallback
}
