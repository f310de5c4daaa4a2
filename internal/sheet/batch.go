package sheet

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/AntoineDubuc/theodore/internal/model"
)

// Analyzer runs a single-company analysis. The research orchestrator
// satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, companyName, website string) *model.AnalysisResult
}

// RowResult pairs an input row with its analysis outcome.
type RowResult struct {
	Row    Row
	Result *model.AnalysisResult
}

// BatchConfig tunes a batch run.
type BatchConfig struct {
	MaxConcurrent int // default 2
	// FailureThreshold is the failed fraction above which the run is
	// reported as exceeded. Default 0.5.
	FailureThreshold float64
}

// Summary aggregates a finished batch run.
type Summary struct {
	Total     int
	Succeeded int
	Partial   int
	Failed    int
	Usage     model.TokenUsage
	Duration  time.Duration
	// ThresholdExceeded is set when Failed/Total passed the configured
	// failure threshold.
	ThresholdExceeded bool
}

// Batch runs analyses over spreadsheet rows with bounded concurrency.
type Batch struct {
	cfg      BatchConfig
	analyzer Analyzer
}

// NewBatch creates a batch runner.
func NewBatch(cfg BatchConfig, analyzer Analyzer) *Batch {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 2
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 0.5
	}
	return &Batch{cfg: cfg, analyzer: analyzer}
}

// AnalyzeRow analyzes one input row. Safe for concurrent callers.
func (b *Batch) AnalyzeRow(ctx context.Context, row Row) RowResult {
	res := b.analyzer.Analyze(ctx, row.Name, row.Website)
	zap.L().Info("row analyzed",
		zap.Int("line", row.Line),
		zap.String("company", row.Name),
		zap.String("outcome", string(res.Outcome)),
		zap.Duration("duration", res.Duration),
		zap.Float64("cost_usd", res.Usage.CostUSD),
	)
	return RowResult{Row: row, Result: res}
}

// Run analyzes every row and returns per-row results in input order plus a
// summary. A cancelled context stops scheduling new rows; rows already
// running finish.
func (b *Batch) Run(ctx context.Context, rows []Row) ([]RowResult, Summary) {
	start := time.Now()
	results := make([]RowResult, len(rows))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.MaxConcurrent)
	for i, row := range rows {
		g.Go(func() error {
			results[i] = b.AnalyzeRow(ctx, row)
			return nil
		})
	}
	// Workers never return errors; failures live in the per-row results.
	_ = g.Wait()

	summary := Summary{Total: len(rows), Duration: time.Since(start)}
	for _, r := range results {
		if r.Result == nil {
			continue
		}
		switch r.Result.Outcome {
		case model.OutcomeSuccess:
			summary.Succeeded++
		case model.OutcomePartial:
			summary.Partial++
		default:
			summary.Failed++
		}
		summary.Usage.Add(r.Result.Usage)
	}
	if summary.Total > 0 {
		frac := float64(summary.Failed) / float64(summary.Total)
		summary.ThresholdExceeded = frac > b.cfg.FailureThreshold
	}

	zap.L().Info("batch finished",
		zap.Int("total", summary.Total),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("partial", summary.Partial),
		zap.Int("failed", summary.Failed),
		zap.Bool("threshold_exceeded", summary.ThresholdExceeded),
		zap.Duration("duration", summary.Duration),
		zap.Float64("cost_usd", summary.Usage.CostUSD),
	)
	return results, summary
}
