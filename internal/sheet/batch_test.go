package sheet

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntoineDubuc/theodore/internal/model"
)

// fakeAnalyzer returns scripted outcomes by company name and tracks peak
// concurrency.
type fakeAnalyzer struct {
	outcomes map[string]model.Outcome
	delay    time.Duration

	inFlight atomic.Int32
	peak     atomic.Int32

	mu   sync.Mutex
	seen []string
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, name, website string) *model.AnalysisResult {
	cur := a.inFlight.Add(1)
	defer a.inFlight.Add(-1)
	for {
		p := a.peak.Load()
		if cur <= p || a.peak.CompareAndSwap(p, cur) {
			break
		}
	}
	if a.delay > 0 {
		time.Sleep(a.delay)
	}

	a.mu.Lock()
	a.seen = append(a.seen, name)
	a.mu.Unlock()

	outcome, ok := a.outcomes[name]
	if !ok {
		outcome = model.OutcomeSuccess
	}
	res := &model.AnalysisResult{
		Outcome: outcome,
		Usage:   model.TokenUsage{InputTokens: 10, CostUSD: 0.001},
	}
	if outcome != model.OutcomeFailure {
		res.Record = model.NewCompanyRecord(name, website)
	}
	return res
}

func rowsFor(names ...string) []Row {
	rows := make([]Row, len(names))
	for i, n := range names {
		rows[i] = Row{Name: n, Line: i + 2}
	}
	return rows
}

func TestBatchRunPreservesOrder(t *testing.T) {
	analyzer := &fakeAnalyzer{outcomes: map[string]model.Outcome{
		"Beta": model.OutcomeFailure,
	}}
	b := NewBatch(BatchConfig{MaxConcurrent: 2}, analyzer)

	results, summary := b.Run(context.Background(), rowsFor("Alpha", "Beta", "Gamma"))

	require.Len(t, results, 3)
	assert.Equal(t, "Alpha", results[0].Row.Name)
	assert.Equal(t, "Beta", results[1].Row.Name)
	assert.Equal(t, "Gamma", results[2].Row.Name)
	assert.Equal(t, model.OutcomeFailure, results[1].Result.Outcome)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 30, summary.Usage.InputTokens)
	assert.False(t, summary.ThresholdExceeded, "1/3 failed is under the default 0.5")
}

func TestBatchRunConcurrencyLimit(t *testing.T) {
	analyzer := &fakeAnalyzer{delay: 20 * time.Millisecond}
	b := NewBatch(BatchConfig{MaxConcurrent: 2}, analyzer)

	b.Run(context.Background(), rowsFor("a", "b", "c", "d", "e", "f"))

	assert.LessOrEqual(t, analyzer.peak.Load(), int32(2))
}

func TestBatchRunThresholdExceeded(t *testing.T) {
	analyzer := &fakeAnalyzer{outcomes: map[string]model.Outcome{
		"Alpha": model.OutcomeFailure,
		"Beta":  model.OutcomeFailure,
	}}
	b := NewBatch(BatchConfig{FailureThreshold: 0.5}, analyzer)

	_, summary := b.Run(context.Background(), rowsFor("Alpha", "Beta", "Gamma"))
	assert.Equal(t, 2, summary.Failed)
	assert.True(t, summary.ThresholdExceeded)
}

func TestBatchRunPartialCountsSeparately(t *testing.T) {
	analyzer := &fakeAnalyzer{outcomes: map[string]model.Outcome{
		"Alpha": model.OutcomePartial,
	}}
	b := NewBatch(BatchConfig{}, analyzer)

	_, summary := b.Run(context.Background(), rowsFor("Alpha", "Beta"))
	assert.Equal(t, 1, summary.Partial)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	assert.False(t, summary.ThresholdExceeded)
}

func TestBatchRunEmpty(t *testing.T) {
	b := NewBatch(BatchConfig{}, &fakeAnalyzer{})
	results, summary := b.Run(context.Background(), nil)
	assert.Empty(t, results)
	assert.Equal(t, 0, summary.Total)
	assert.False(t, summary.ThresholdExceeded)
}
