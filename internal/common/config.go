package common

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config is the CLI configuration, loaded from a TOML file with environment
// variable overrides for credentials.
type Config struct {
	Service ServiceConfig `toml:"service"`
	Watch   WatchConfig   `toml:"watch"`
	Logging LoggingConfig `toml:"logging"`
}

// ServiceConfig identifies the remote service and credential.
type ServiceConfig struct {
	APIKey    string `toml:"api_key" validate:"required"`
	BaseURL   string `toml:"base_url" validate:"required,url"`
	RateLimit int    `toml:"rate_limit" validate:"gte=0"` // requests per second, 0 = default
}

// WatchConfig holds watcher tuning. Durations are strings ("2s", "5m") so
// the TOML stays readable.
type WatchConfig struct {
	PollInterval string `toml:"poll_interval"` // e.g., "2s" - fallback poll spacing and quiet-period window
	Timeout      string `toml:"timeout"`       // e.g., "10m" - overall watch deadline, empty = none
}

// LoggingConfig controls the arbor logger.
type LoggingConfig struct {
	Level  string   `toml:"level"`  // trace, debug, info, warn, error
	Output []string `toml:"output"` // "stdout", "file"
}

// DefaultConfig returns the built-in defaults applied before file and
// environment values.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			BaseURL: "https://api.firecrawl.dev",
		},
		Watch: WatchConfig{
			PollInterval: "2s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadConfig reads the TOML config file, applies environment overrides
// (PROWL_API_KEY, PROWL_BASE_URL, loaded from .env when present), and
// validates the result. An empty path loads defaults plus environment only.
func LoadConfig(path string) (*Config, error) {
	// Best effort - a missing .env file is not an error
	_ = godotenv.Load()

	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if apiKey := os.Getenv("PROWL_API_KEY"); apiKey != "" {
		config.Service.APIKey = apiKey
	}
	if baseURL := os.Getenv("PROWL_BASE_URL"); baseURL != "" {
		config.Service.BaseURL = baseURL
	}

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// PollIntervalDuration parses the configured poll interval, falling back to
// the default on empty or malformed values.
func (c *WatchConfig) PollIntervalDuration() time.Duration {
	if d, err := time.ParseDuration(c.PollInterval); err == nil && d > 0 {
		return d
	}
	return 2 * time.Second
}

// TimeoutDuration parses the configured watch timeout; zero means no
// deadline.
func (c *WatchConfig) TimeoutDuration() time.Duration {
	if d, err := time.ParseDuration(c.Timeout); err == nil && d > 0 {
		return d
	}
	return 0
}
