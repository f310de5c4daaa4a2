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

func chTempDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.LLM.AnthropicModel)
	assert.Equal(t, 3, cfg.Rate.Capacity)
	assert.InDelta(t, 8.0/60.0, cfg.Rate.RefillPerSec, 0.001)
	assert.Equal(t, 3, cfg.Pool.Workers)
	assert.Equal(t, 30*time.Second, cfg.Timeout.Default())
	assert.Equal(t, 60*time.Second, cfg.Timeout.Complex())
	assert.Equal(t, 120*time.Second, cfg.Timeout.Max())
	assert.InDelta(t, 1.5, cfg.Timeout.IncreaseFactor, 0.001)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Retry.BaseBackoff())
	assert.Equal(t, 30*time.Second, cfg.Retry.MaxBackoff())
	assert.Equal(t, 30*time.Second, cfg.Discovery.Deadline())
	assert.Equal(t, 3, cfg.Discovery.RecursionDepth)
	assert.Equal(t, 10, cfg.Extract.MaxConcurrent)
	assert.Equal(t, 500, cfg.Extract.PrimaryThresholdChars)
	assert.Equal(t, 100000, cfg.Extract.PromptBudgetChars)
	assert.Equal(t, 1536, cfg.Embedding.Dimension)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 2, cfg.Batch.MaxConcurrent)
	assert.InDelta(t, 0.5, cfg.Batch.FailureThreshold, 0.001)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	chTempDir(t)

	yaml := `
store:
  driver: postgres
  dsn: postgres://localhost/theodore
log:
  level: debug
  format: console
pool:
  workers: 5
batch:
  max_concurrent: 4
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/theodore", cfg.Store.DSN)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 5, cfg.Pool.Workers)
	assert.Equal(t, 4, cfg.Batch.MaxConcurrent)
	// Defaults still apply for unset values
	assert.Equal(t, 3, cfg.Rate.Capacity)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	chTempDir(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("THEODORE_STORE_DRIVER", "postgres")
	t.Setenv("THEODORE_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chTempDir(t)

	t.Setenv("THEODORE_LLM_ANTHROPIC_API_KEY", "sk-ant-test")
	t.Setenv("THEODORE_POOL_WORKERS", "7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-test", cfg.LLM.AnthropicKey)
	assert.Equal(t, 7, cfg.Pool.Workers)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config that passes validation in every mode.
func validDefaults() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:     "anthropic",
			AnthropicKey: "sk-ant-key",
			GeminiKey:    "gm-key",
		},
		Rate:      RateConfig{Capacity: 3, RefillPerSec: 8.0 / 60.0},
		Pool:      PoolConfig{Workers: 3},
		Embedding: EmbeddingConfig{Dimension: 1536},
		Store:     StoreConfig{Driver: "sqlite", DSN: "theodore.db"},
		Batch:     BatchConfig{MaxConcurrent: 2, FailureThreshold: 0.5},
	}
}

func TestValidateResearch_AllPresent(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("research"))
}

func TestValidateResearch_MissingKeys(t *testing.T) {
	cfg := validDefaults()
	cfg.LLM.AnthropicKey = ""
	cfg.LLM.GeminiKey = ""

	err := cfg.Validate("research")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm.anthropic_api_key is required")
	assert.Contains(t, err.Error(), "llm.gemini_api_key is required")
}

func TestValidateGeminiProviderNeedsNoAnthropicKey(t *testing.T) {
	cfg := validDefaults()
	cfg.LLM.Provider = "gemini"
	cfg.LLM.AnthropicKey = ""

	assert.NoError(t, cfg.Validate("research"))
}

func TestValidateUnknownProvider(t *testing.T) {
	cfg := validDefaults()
	cfg.LLM.Provider = "mystery"

	err := cfg.Validate("research")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm.provider must be anthropic or gemini")
}

func TestValidateSimilar_MissingDSN(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DSN = ""

	err := cfg.Validate("similar")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.dsn is required")
}

func TestValidateBatchConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Batch.MaxConcurrent = 0
	err := cfg.Validate("batch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch.max_concurrent must be between 1 and 50")

	cfg.Batch.MaxConcurrent = 51
	err = cfg.Validate("batch")
	require.Error(t, err)

	cfg.Batch.MaxConcurrent = 50
	assert.NoError(t, cfg.Validate("batch"))
}

func TestValidateBatchFailureThreshold(t *testing.T) {
	cfg := validDefaults()
	cfg.Batch.FailureThreshold = 1.5

	err := cfg.Validate("batch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch.failure_threshold")
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidatePoolWorkerBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Pool.Workers = 0

	err := cfg.Validate("research")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pool.workers must be between 1 and 32")
}
