package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.hubapi.com", cfg.HubSpot.BaseURL)
	assert.Equal(t, 100, cfg.HubSpot.RateLimitRequests)
	assert.Equal(t, 10*time.Second, cfg.HubSpot.RateLimitWindow())
	assert.Equal(t, 3, cfg.HubSpot.MaxRetries)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, int64(1024), cfg.Anthropic.MaxTokens)
	assert.Equal(t, 60, cfg.Schema.MemoryTTLMins)
	assert.Equal(t, 24, cfg.Schema.DurableTTLHours)
	assert.True(t, cfg.Merge.Assisted)
	assert.Equal(t, 3, cfg.Merge.CircuitFailureThreshold)
	assert.Equal(t, 5, cfg.Sync.MatchLimit)
	assert.Equal(t, 30, cfg.Sync.OrphanPendingMins)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
hubspot:
  token: pat-na1-123
  connection_id: portal-42
  rate_limit_requests: 50
store:
  driver: postgres
  database_url: postgres://localhost/dealsync
merge:
  assisted: false
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "pat-na1-123", cfg.HubSpot.Token)
	assert.Equal(t, "portal-42", cfg.HubSpot.ConnectionID)
	assert.Equal(t, 50, cfg.HubSpot.RateLimitRequests)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.False(t, cfg.Merge.Assisted)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadFromEnv(t *testing.T) {
	chdirTemp(t)
	t.Setenv("DEALSYNC_HUBSPOT_TOKEN", "env-token")
	t.Setenv("DEALSYNC_SYNC_MATCH_LIMIT", "9")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.HubSpot.Token)
	assert.Equal(t, 9, cfg.Sync.MatchLimit)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("hubspot: [unclosed"), 0o644))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			HubSpot:   HubSpotConfig{Token: "t", ConnectionID: "c"},
			Store:     StoreConfig{Driver: "sqlite"},
			Merge:     MergeConfig{Assisted: true},
			Anthropic: AnthropicConfig{Key: "k"},
		}
	}

	require.NoError(t, valid().Validate())

	c := valid()
	c.HubSpot.Token = ""
	assert.ErrorContains(t, c.Validate(), "hubspot.token")

	c = valid()
	c.Store.Driver = "mysql"
	assert.ErrorContains(t, c.Validate(), "unsupported store driver")

	c = valid()
	c.Anthropic.Key = ""
	require.NoError(t, c.Validate())
	assert.False(t, c.Merge.Assisted, "assisted merge is disabled without a key")
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.True(t, zap.L().Core().Enabled(zap.DebugLevel))

	require.NoError(t, InitLogger(LogConfig{Level: "warn", Format: "json"}))
	assert.False(t, zap.L().Core().Enabled(zap.InfoLevel))

	assert.Error(t, InitLogger(LogConfig{Level: "loud"}))
}
