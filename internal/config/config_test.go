package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	cfg, err := Load(New())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "gemini-2.5-flash", cfg.GeminiModel)
	assert.Equal(t, "stranded_days", cfg.ChronicleQueue)
	assert.Equal(t, 3, cfg.ResolutionAttempts)
	assert.Equal(t, time.Second, cfg.ResolutionBackoff)
	assert.Equal(t, 20*time.Second, cfg.ResolutionTimeout)
	assert.Equal(t, 20, cfg.HistorianBatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.HistorianFlush)
	assert.Empty(t, cfg.RedisAddr)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("STRANDED_PORT", "9090")
	t.Setenv("STRANDED_REDIS_ADDR", "localhost:6379")
	t.Setenv("STRANDED_RESOLUTION_BACKOFF", "250ms")
	t.Setenv("STRANDED_LOG_LEVEL", "debug")
	t.Setenv("GEMINI_API_KEY", "plain-key")

	cfg, err := Load(New())
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 250*time.Millisecond, cfg.ResolutionBackoff)
	assert.Equal(t, "plain-key", cfg.GeminiAPIKey)
	assert.Equal(t, logrus.DebugLevel, cfg.Logger().GetLevel())
}

func TestPrefixedKeyWins(t *testing.T) {
	t.Setenv("STRANDED_GEMINI_API_KEY", "prefixed")
	t.Setenv("GEMINI_API_KEY", "plain")

	cfg, err := Load(New())
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.GeminiAPIKey)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port zero", func(c *Config) { c.Port = 0 }},
		{"port too big", func(c *Config) { c.Port = 70000 }},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }},
		{"no attempts", func(c *Config) { c.ResolutionAttempts = 0 }},
		{"no timeout", func(c *Config) { c.ResolutionTimeout = 0 }},
		{"negative backoff", func(c *Config) { c.ResolutionBackoff = -time.Second }},
		{"no batch", func(c *Config) { c.HistorianBatchSize = 0 }},
		{"no flush", func(c *Config) { c.HistorianFlush = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load(New())
			require.NoError(t, err)
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
