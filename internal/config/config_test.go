package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "finance.db", cfg.Store.SQLitePath)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.OpenRouter.BaseURL)
	assert.InDelta(t, 2.0, cfg.OpenRouter.RateLimitRPS, 0.001)
	assert.Equal(t, 15*time.Second, cfg.Failover.AttemptTimeout())
	assert.Equal(t, 45*time.Second, cfg.Failover.VisionTimeout())
	assert.Equal(t, 30*time.Second, cfg.Failover.CollectTimeout())
	assert.Equal(t, 500*time.Millisecond, cfg.Failover.RateLimitPause())
	assert.True(t, cfg.Extract.RefinementOverwrites)
	assert.Equal(t, 4, cfg.Extract.MaxConcurrentParses)
	assert.Equal(t, 12*time.Hour, cfg.Rates.Window())
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/finance
openrouter:
  key: test-key
  text_models:
    - some/model:free
extract:
  refinement_overwrites: false
rates:
  window_hours: 6
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile("config.yaml", []byte(yaml), 0o600))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "test-key", cfg.OpenRouter.Key)
	assert.Equal(t, []string{"some/model:free"}, cfg.OpenRouter.TextModels)
	assert.False(t, cfg.Extract.RefinementOverwrites)
	assert.Equal(t, 6*time.Hour, cfg.Rates.Window())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadFromEnv(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("FINANCE_OPENROUTER_KEY", "env-key")
	t.Setenv("FINANCE_RATES_METALS_KEY", "metal-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.OpenRouter.Key)
	assert.Equal(t, "metal-key", cfg.Rates.MetalsKey)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	assert.Error(t, InitLogger(LogConfig{Level: "not-a-level"}))
}
