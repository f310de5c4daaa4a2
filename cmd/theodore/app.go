package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/AntoineDubuc/theodore/internal/config"
	"github.com/AntoineDubuc/theodore/internal/discovery"
	"github.com/AntoineDubuc/theodore/internal/extract"
	"github.com/AntoineDubuc/theodore/internal/llm"
	"github.com/AntoineDubuc/theodore/internal/ratelimit"
	"github.com/AntoineDubuc/theodore/internal/research"
	"github.com/AntoineDubuc/theodore/internal/resilience"
	"github.com/AntoineDubuc/theodore/internal/vectorstore"
	"github.com/AntoineDubuc/theodore/internal/worker"
)

// app bundles the wired subsystems a command needs.
type app struct {
	pool         *worker.Pool
	orchestrator *research.Orchestrator
	extractor    *extract.Extractor
	store        vectorstore.Store
}

// newApp wires the limiter, worker pool, discovery, extraction, and the
// orchestrator from config. The vector store is opened only when withStore
// is set, so research without persistence does not need a DSN.
func newApp(ctx context.Context, cfg *config.Config, withStore bool) (*app, error) {
	factory, err := llm.NewFactory(llm.Config{
		Provider:       cfg.LLM.Provider,
		AnthropicKey:   cfg.LLM.AnthropicKey,
		AnthropicModel: cfg.LLM.AnthropicModel,
		GeminiKey:      cfg.LLM.GeminiKey,
		GeminiModel:    cfg.LLM.GeminiModel,
		EmbedDimension: cfg.Embedding.Dimension,
	})
	if err != nil {
		return nil, err
	}

	// Fail fast with a dependency error when the provider is unreachable,
	// rather than surfacing it mid-analysis.
	hctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := factory().Health(hctx); err != nil {
		return nil, err
	}

	limiter := ratelimit.New(cfg.Rate.Capacity, cfg.Rate.RefillPerSec)
	pool := worker.NewPool(worker.Config{
		Workers:     cfg.Pool.Workers,
		QueueSize:   cfg.Pool.QueueSize,
		CallTimeout: cfg.Timeout.Default(),
	}, limiter, factory)

	disc := discovery.New(discovery.Config{
		UserAgent:     cfg.Discovery.UserAgent,
		Deadline:      cfg.Discovery.Deadline(),
		CrawlDepth:    cfg.Discovery.RecursionDepth,
		MaxCrawlPages: cfg.Discovery.MaxCrawlPages,
	})

	retry := resilience.RetryConfig{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		InitialBackoff: cfg.Retry.BaseBackoff(),
		MaxBackoff:     cfg.Retry.MaxBackoff(),
		Multiplier:     2.0,
		JitterFraction: cfg.Retry.Jitter,
	}

	// Page fetches back off on a shorter ladder than LLM calls.
	fetchRetry := retry
	fetchRetry.InitialBackoff = time.Second
	fetchRetry.MaxBackoff = 10 * time.Second

	complexity := extract.NewSiteComplexity(0)
	fetcher := extract.NewFetcher(extract.FetcherConfig{
		UserAgent:     cfg.Discovery.UserAgent,
		InsecureHosts: cfg.Extract.InsecureHosts,
	})
	extractor := extract.New(extract.Config{
		PrimaryThreshold: cfg.Extract.PrimaryThresholdChars,
		MaxConcurrent:    cfg.Extract.MaxConcurrent,
		Timeout:          cfg.Timeout.Simple(),
		TimeoutComplex:   cfg.Timeout.Complex(),
		TimeoutMax:       cfg.Timeout.Max(),
		TimeoutFactor:    cfg.Timeout.IncreaseFactor,
		Retry:            fetchRetry,
	}, fetcher, complexity)
	orchestrator := research.New(research.Config{
		OverallDeadline:      cfg.Timeout.Overall(),
		CorpusBudget:         cfg.Extract.PromptBudgetChars,
		MaxConcurrentExtract: cfg.Extract.MaxConcurrent,
		SelectionTimeout:     cfg.Timeout.Default(),
		AggregationTimeout:   cfg.Timeout.Complex(),
		TimeoutComplex:       cfg.Timeout.Complex(),
		TimeoutMax:           cfg.Timeout.Max(),
		TimeoutFactor:        cfg.Timeout.IncreaseFactor,
		SelectionRetry:       retry,
		AggregationRetry:     retry,
	}, pool, disc, extractor, complexity)

	a := &app{
		pool:         pool,
		orchestrator: orchestrator,
		extractor:    extractor,
	}

	if withStore {
		store, err := vectorstore.Open(ctx, cfg.Store.Driver, cfg.Store.DSN, cfg.Embedding.Dimension)
		if err != nil {
			a.close()
			return nil, err
		}
		a.store = store
	}

	return a, nil
}

// close shuts subsystems down, giving in-flight LLM calls a short drain
// window.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.pool.Shutdown(ctx); err != nil {
		zap.L().Warn("pool shutdown", zap.Error(err))
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			zap.L().Warn("store close", zap.Error(err))
		}
	}
}
