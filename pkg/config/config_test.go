package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/grove-backlog/pkg/sync"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BACKLOG_TOKEN", "")
	t.Setenv(TokenFallbackEnv, "")

	l, err := NewLoader(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "https://dev.azure.com", cfg.BaseURL)
	assert.Equal(t, 200, cfg.BatchSize)
	assert.Equal(t, "manual", cfg.ConflictStrategy)
	assert.Equal(t, 100, cfg.RateLimit.Requests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Empty(t, cfg.Token)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `organization: acme
project: web
batch_size: 50
conflict_strategy: prefer-remote
include_comments: true
defaults:
  area_path: web\Team
  priority: 2
rate_limit:
  requests: 20
  window: 30s
`)
	t.Setenv("BACKLOG_PROJECT", "mobile")
	t.Setenv("BACKLOG_DEFAULTS_STATE", "New")
	t.Setenv("BACKLOG_TOKEN", "")
	t.Setenv(TokenFallbackEnv, "from-az-cli")

	l, err := NewLoader(path)
	require.NoError(t, err)
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "acme", cfg.Organization)
	assert.Equal(t, "mobile", cfg.Project, "environment wins over the file")
	assert.Equal(t, 50, cfg.BatchSize)
	assert.True(t, cfg.IncludeComments)
	assert.Equal(t, sync.Defaults{AreaPath: `web\Team`, State: "New", Priority: 2}, cfg.Defaults)
	assert.Equal(t, RateLimit{Requests: 20, Window: 30 * time.Second}, cfg.RateLimit)
	assert.Equal(t, "from-az-cli", cfg.Token)

	strategy, err := cfg.Strategy()
	require.NoError(t, err)
	assert.Equal(t, sync.StrategyPreferRemote, strategy)

	opts := cfg.ClientOptions("acme", "mobile")
	assert.Equal(t, "from-az-cli", opts.Token)
	assert.Equal(t, 20, opts.RateLimit)
	assert.Equal(t, 30*time.Second, opts.RateWindow)

	t.Setenv("BACKLOG_TOKEN", "primary")
	l, err = NewLoader(path)
	require.NoError(t, err)
	cfg, err = l.Load()
	require.NoError(t, err)
	assert.Equal(t, "primary", cfg.Token)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := writeConfig(t, "organization: [acme\n")
	_, err := NewLoader(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{BatchSize: 200, ConflictStrategy: "manual", RateLimit: RateLimit{Requests: 100, Window: time.Minute}}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown strategy", func(c *Config) { c.ConflictStrategy = "newest" }},
		{"batch too large", func(c *Config) { c.BatchSize = 500 }},
		{"batch zero", func(c *Config) { c.BatchSize = 0 }},
		{"no requests", func(c *Config) { c.RateLimit.Requests = 0 }},
		{"no window", func(c *Config) { c.RateLimit.Window = 0 }},
		{"priority", func(c *Config) { c.Defaults.Priority = 7 }},
	}

	base := valid()
	require.NoError(t, base.Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSetPersistsOnlyFileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	t.Setenv("BACKLOG_TOKEN", "secret-from-env")

	l, err := NewLoader(path)
	require.NoError(t, err)
	require.NoError(t, l.Set("organization", "acme"))
	require.NoError(t, l.Set("batch_size", "25"))
	require.NoError(t, l.Set("rate_limit.window", "2m"))

	assert.Error(t, l.Set("batch_size", "many"))
	assert.Error(t, l.Set("rate_limit.window", "soon"))
	assert.Error(t, l.Set("colour", "blue"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret-from-env")

	reloaded, err := NewLoader(path)
	require.NoError(t, err)
	cfg, err := reloaded.Load()
	require.NoError(t, err)
	assert.Equal(t, "acme", cfg.Organization)
	assert.Equal(t, 25, cfg.BatchSize)
	assert.Equal(t, 2*time.Minute, cfg.RateLimit.Window)

	v, err := reloaded.Get("organization")
	require.NoError(t, err)
	assert.Equal(t, "acme", v)
	_, err = reloaded.Get("colour")
	assert.Error(t, err)
}

func TestKeys(t *testing.T) {
	keys := Keys()
	assert.Contains(t, keys, "defaults.area_path")
	assert.Contains(t, keys, "rate_limit.window")
	assert.IsIncreasing(t, keys)
}
