package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetry(3), func(ctx context.Context, attempt int) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoValRetriesRecoverable(t *testing.T) {
	calls := 0
	val, err := DoVal(context.Background(), fastRetry(3), func(ctx context.Context, attempt int) (string, error) {
		calls++
		assert.Equal(t, calls-1, attempt)
		if calls < 3 {
			return "", Errorf(KindTimeout, "slow")
		}
		return "done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "done", val)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnNonRecoverable(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetry(5), func(ctx context.Context, attempt int) error {
		calls++
		return Errorf(KindProviderFatal, "invalid api key")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, KindProviderFatal, KindOf(err))
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	var retried []int
	cfg := fastRetry(3)
	cfg.OnRetry = func(attempt int, err error) { retried = append(retried, attempt) }

	err := Do(context.Background(), cfg, func(ctx context.Context, attempt int) error {
		calls++
		return Errorf(KindTransport, "conn reset")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDoShouldRetryOverride(t *testing.T) {
	calls := 0
	cfg := fastRetry(3)
	cfg.ShouldRetry = func(err error) bool { return KindOf(err) == KindInvalidResponse }

	err := Do(context.Background(), cfg, func(ctx context.Context, attempt int) error {
		calls++
		return Errorf(KindInvalidResponse, "bad json")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, fastRetry(5), func(ctx context.Context, attempt int) error {
		calls++
		cancel()
		return Errorf(KindTimeout, "slow")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestComputeBackoffGrowsAndCaps(t *testing.T) {
	cfg := RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     300 * time.Millisecond,
		Multiplier:     2.0,
	}
	assert.Equal(t, 100*time.Millisecond, computeBackoff(0, cfg))
	assert.Equal(t, 200*time.Millisecond, computeBackoff(1, cfg))
	assert.Equal(t, 300*time.Millisecond, computeBackoff(2, cfg))
	assert.Equal(t, 300*time.Millisecond, computeBackoff(10, cfg))
}

func TestComputeBackoffJitterBounds(t *testing.T) {
	cfg := RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.5,
	}
	for i := 0; i < 50; i++ {
		d := computeBackoff(0, cfg)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}

func TestScaleTimeout(t *testing.T) {
	assert.Equal(t, 30*time.Second, ScaleTimeout(30*time.Second, 1.5, 0, 120*time.Second))
	assert.Equal(t, 45*time.Second, ScaleTimeout(30*time.Second, 1.5, 1, 120*time.Second))
	assert.Equal(t, 120*time.Second, ScaleTimeout(30*time.Second, 1.5, 5, 120*time.Second))
	// Zero factor falls back to 1.5.
	assert.Equal(t, 45*time.Second, ScaleTimeout(30*time.Second, 0, 1, 120*time.Second))
}
