package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWith_Defaults(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{}))
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.False(t, cfg.Production())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "ws://localhost:8080", cfg.ServerURL)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 5*time.Second, cfg.SweepInterval)
	assert.Equal(t, int64(1<<20), cfg.MaxMessageSize)
	assert.Equal(t, int64(8<<20), cfg.MaxUploadSize)
	assert.Equal(t, 10.0, cfg.RateLimit)
	assert.Equal(t, 20, cfg.RateBurst)
}

func TestLoadWith_Overrides(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"APP_ENV":                    "production",
		"LOG_LEVEL":                  "debug",
		"PAINTBOARD_ADDR":            ":9000",
		"PAINTBOARD_SERVER_URL":      "wss://board.example.com",
		"PAINTBOARD_REQUEST_TIMEOUT": "2s",
	}))
	require.NoError(t, err)

	assert.True(t, cfg.Production())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "wss://board.example.com", cfg.ServerURL)
	assert.Equal(t, 2*time.Second, cfg.RequestTimeout)
}

func TestLoadWith_InvalidValues(t *testing.T) {
	_, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"PAINTBOARD_REQUEST_TIMEOUT": "soon",
	}))
	assert.Error(t, err)

	_, err = LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"LOG_LEVEL":                 "loud",
		"PAINTBOARD_SWEEP_INTERVAL": "0s",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOG_LEVEL")
	assert.Contains(t, err.Error(), "PAINTBOARD_SWEEP_INTERVAL")
}
