// Package config reads settings for both binaries from the environment,
// optionally seeded from a .env file.
package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	// Environment
	AppEnv   string `env:"APP_ENV,default=development"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	// Server
	Addr           string  `env:"PAINTBOARD_ADDR,default=:8080"`
	MaxMessageSize int64   `env:"PAINTBOARD_MAX_MESSAGE_SIZE,default=1048576"`
	MaxUploadSize  int64   `env:"PAINTBOARD_MAX_UPLOAD_SIZE,default=8388608"`
	RateLimit      float64 `env:"PAINTBOARD_RATE_LIMIT,default=10"`
	RateBurst      int     `env:"PAINTBOARD_RATE_BURST,default=20"`

	// Client
	ServerURL      string        `env:"PAINTBOARD_SERVER_URL,default=ws://localhost:8080"`
	RequestTimeout time.Duration `env:"PAINTBOARD_REQUEST_TIMEOUT,default=30s"`
	SweepInterval  time.Duration `env:"PAINTBOARD_SWEEP_INTERVAL,default=5s"`
}

// Load reads an optional .env file, then the process environment
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads the configuration from l and validates it
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}
	if err := envconfig.ProcessWith(ctx, cfg, l); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Production reports whether APP_ENV selects production behaviour
func (c *Config) Production() bool {
	return c.AppEnv == "production"
}

// Validate checks every field and reports all problems at once
func (c *Config) Validate() error {
	var errors []string

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %s", strings.Join(validLogLevels, ", ")))
	}
	if c.Addr == "" {
		errors = append(errors, "PAINTBOARD_ADDR must not be empty")
	}
	if c.MaxMessageSize <= 0 {
		errors = append(errors, "PAINTBOARD_MAX_MESSAGE_SIZE must be positive")
	}
	if c.MaxUploadSize <= 0 {
		errors = append(errors, "PAINTBOARD_MAX_UPLOAD_SIZE must be positive")
	}
	if c.RateLimit <= 0 || c.RateBurst <= 0 {
		errors = append(errors, "PAINTBOARD_RATE_LIMIT and PAINTBOARD_RATE_BURST must be positive")
	}
	if u, err := url.Parse(c.ServerURL); err != nil || u.Host == "" {
		errors = append(errors, "PAINTBOARD_SERVER_URL must be an absolute URL")
	}
	if c.RequestTimeout < 0 {
		errors = append(errors, "PAINTBOARD_REQUEST_TIMEOUT must not be negative")
	}
	if c.SweepInterval <= 0 {
		errors = append(errors, "PAINTBOARD_SWEEP_INTERVAL must be positive")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
