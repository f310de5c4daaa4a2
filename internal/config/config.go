package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	LLM       LLMConfig       `yaml:"llm" mapstructure:"llm"`
	Rate      RateConfig      `yaml:"rate" mapstructure:"rate"`
	Pool      PoolConfig      `yaml:"pool" mapstructure:"pool"`
	Timeout   TimeoutConfig   `yaml:"timeout" mapstructure:"timeout"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Discovery DiscoveryConfig `yaml:"discovery" mapstructure:"discovery"`
	Extract   ExtractConfig   `yaml:"extract" mapstructure:"extract"`
	Embedding EmbeddingConfig `yaml:"embedding" mapstructure:"embedding"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Similar   SimilarConfig   `yaml:"similar" mapstructure:"similar"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// LLMConfig selects and credentials the model providers.
type LLMConfig struct {
	Provider       string `yaml:"provider" mapstructure:"provider"`
	AnthropicKey   string `yaml:"anthropic_api_key" mapstructure:"anthropic_api_key"`
	AnthropicModel string `yaml:"anthropic_model" mapstructure:"anthropic_model"`
	GeminiKey      string `yaml:"gemini_api_key" mapstructure:"gemini_api_key"`
	GeminiModel    string `yaml:"gemini_model" mapstructure:"gemini_model"`
}

// RateConfig parameterizes the provider rate limiter.
type RateConfig struct {
	Capacity     int     `yaml:"capacity" mapstructure:"capacity"`
	RefillPerSec float64 `yaml:"refill_per_sec" mapstructure:"refill_per_sec"`
}

// PoolConfig sizes the LLM worker pool.
type PoolConfig struct {
	Workers   int `yaml:"workers" mapstructure:"workers"`
	QueueSize int `yaml:"queue_size" mapstructure:"queue_size"`
}

// TimeoutConfig holds the adaptive per-call timeout presets, in seconds.
type TimeoutConfig struct {
	DefaultSecs    int     `yaml:"default_secs" mapstructure:"default_secs"`
	SimpleSecs     int     `yaml:"simple_secs" mapstructure:"simple_secs"`
	ComplexSecs    int     `yaml:"complex_secs" mapstructure:"complex_secs"`
	MaxSecs        int     `yaml:"max_secs" mapstructure:"max_secs"`
	IncreaseFactor float64 `yaml:"increase_factor" mapstructure:"increase_factor"`
	OverallSecs    int     `yaml:"overall_secs" mapstructure:"overall_secs"`
}

// RetryConfig holds the shared retry policy for LLM phases.
type RetryConfig struct {
	MaxAttempts     int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	BaseBackoffSecs float64 `yaml:"base_backoff_secs" mapstructure:"base_backoff_secs"`
	MaxBackoffSecs  float64 `yaml:"max_backoff_secs" mapstructure:"max_backoff_secs"`
	Jitter          float64 `yaml:"jitter" mapstructure:"jitter"`
}

// DiscoveryConfig bounds link discovery.
type DiscoveryConfig struct {
	DeadlineSecs   int    `yaml:"deadline_secs" mapstructure:"deadline_secs"`
	RecursionDepth int    `yaml:"recursion_depth" mapstructure:"recursion_depth"`
	MaxCrawlPages  int    `yaml:"max_crawl_pages" mapstructure:"max_crawl_pages"`
	UserAgent      string `yaml:"user_agent" mapstructure:"user_agent"`
}

// ExtractConfig tunes content extraction.
type ExtractConfig struct {
	MaxConcurrent         int      `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	PrimaryThresholdChars int      `yaml:"primary_threshold_chars" mapstructure:"primary_threshold_chars"`
	PromptBudgetChars     int      `yaml:"prompt_budget_chars" mapstructure:"prompt_budget_chars"`
	InsecureHosts         []string `yaml:"insecure_hosts" mapstructure:"insecure_hosts"`
}

// EmbeddingConfig fixes the vector dimension.
type EmbeddingConfig struct {
	Dimension int `yaml:"dimension" mapstructure:"dimension"`
}

// StoreConfig configures the vector store backend.
type StoreConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrent    int     `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	FailureThreshold float64 `yaml:"failure_threshold" mapstructure:"failure_threshold"`
}

// SimilarConfig configures the similarity engine.
type SimilarConfig struct {
	MaxResults    int  `yaml:"max_results" mapstructure:"max_results"`
	SurfaceScrape bool `yaml:"surface_scrape" mapstructure:"surface_scrape"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Duration helpers: the file stores seconds, callers want durations.

func (t TimeoutConfig) Default() time.Duration { return secs(t.DefaultSecs) }
func (t TimeoutConfig) Simple() time.Duration  { return secs(t.SimpleSecs) }
func (t TimeoutConfig) Complex() time.Duration { return secs(t.ComplexSecs) }
func (t TimeoutConfig) Max() time.Duration     { return secs(t.MaxSecs) }
func (t TimeoutConfig) Overall() time.Duration { return secs(t.OverallSecs) }

func (d DiscoveryConfig) Deadline() time.Duration { return secs(d.DeadlineSecs) }

func (r RetryConfig) BaseBackoff() time.Duration {
	return time.Duration(r.BaseBackoffSecs * float64(time.Second))
}

func (r RetryConfig) MaxBackoff() time.Duration {
	return time.Duration(r.MaxBackoffSecs * float64(time.Second))
}

func secs(n int) time.Duration { return time.Duration(n) * time.Second }

// Validate checks the fields a run mode needs. mode is one of "research",
// "similar", "batch".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.LLM.Provider {
	case "anthropic":
		if c.LLM.AnthropicKey == "" {
			problems = append(problems, "llm.anthropic_api_key is required")
		}
	case "gemini":
	default:
		problems = append(problems, "llm.provider must be anthropic or gemini")
	}
	// Embeddings always go through Gemini.
	if c.LLM.GeminiKey == "" {
		problems = append(problems, "llm.gemini_api_key is required")
	}

	if c.Rate.Capacity < 1 {
		problems = append(problems, "rate.capacity must be >= 1")
	}
	if c.Rate.RefillPerSec <= 0 {
		problems = append(problems, "rate.refill_per_sec must be > 0")
	}
	if c.Pool.Workers < 1 || c.Pool.Workers > 32 {
		problems = append(problems, "pool.workers must be between 1 and 32")
	}
	if c.Embedding.Dimension < 1 {
		problems = append(problems, "embedding.dimension must be >= 1")
	}

	switch mode {
	case "research", "similar":
		if c.Store.DSN == "" {
			problems = append(problems, "store.dsn is required")
		}
	case "batch":
		if c.Batch.MaxConcurrent < 1 || c.Batch.MaxConcurrent > 50 {
			problems = append(problems, "batch.max_concurrent must be between 1 and 50")
		}
		if c.Batch.FailureThreshold < 0 || c.Batch.FailureThreshold > 1 {
			problems = append(problems, "batch.failure_threshold must be within [0,1]")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("THEODORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.anthropic_model", "claude-haiku-4-5-20251001")
	v.SetDefault("llm.gemini_model", "gemini-2.5-flash")
	v.SetDefault("rate.capacity", 3)
	v.SetDefault("rate.refill_per_sec", 8.0/60.0)
	v.SetDefault("pool.workers", 3)
	v.SetDefault("pool.queue_size", 256)
	v.SetDefault("timeout.default_secs", 30)
	v.SetDefault("timeout.simple_secs", 15)
	v.SetDefault("timeout.complex_secs", 60)
	v.SetDefault("timeout.max_secs", 120)
	v.SetDefault("timeout.increase_factor", 1.5)
	v.SetDefault("timeout.overall_secs", 90)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_backoff_secs", 2.0)
	v.SetDefault("retry.max_backoff_secs", 30.0)
	v.SetDefault("retry.jitter", 1.0)
	v.SetDefault("discovery.deadline_secs", 30)
	v.SetDefault("discovery.recursion_depth", 3)
	v.SetDefault("discovery.max_crawl_pages", 25)
	v.SetDefault("discovery.user_agent", "theodore/1.0")
	v.SetDefault("extract.max_concurrent", 10)
	v.SetDefault("extract.primary_threshold_chars", 500)
	v.SetDefault("extract.prompt_budget_chars", 100000)
	v.SetDefault("embedding.dimension", 1536)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "theodore.db")
	v.SetDefault("batch.max_concurrent", 2)
	v.SetDefault("batch.failure_threshold", 0.5)
	v.SetDefault("similar.max_results", 10)
	v.SetDefault("similar.surface_scrape", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
