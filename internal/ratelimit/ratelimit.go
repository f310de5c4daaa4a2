// Package ratelimit gates outbound LLM-provider calls behind a shared token
// bucket so concurrent workers stay inside provider quotas.
package ratelimit

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/AntoineDubuc/theodore/internal/resilience"
)

// Limiter is a token-bucket gate shared by all workers. Capacity bounds the
// burst; the bucket refills continuously at RefillPerSec. Waiters are served
// in FIFO order, so no caller starves under a bounded producer rate.
type Limiter struct {
	lim *rate.Limiter
}

// Snapshot is a point-in-time view of limiter state, without mutation.
type Snapshot struct {
	Tokens       float64
	Capacity     int
	RefillPerSec float64
}

// New creates a Limiter with the given bucket capacity and refill rate.
// A capacity of 3 with refill 8/60 suits a 10 req/min provider tier with a
// conservative buffer.
func New(capacity int, refillPerSec float64) *Limiter {
	if capacity < 1 {
		capacity = 1
	}
	if refillPerSec <= 0 {
		refillPerSec = 1
	}
	return &Limiter{
		lim: rate.NewLimiter(rate.Limit(refillPerSec), capacity),
	}
}

// Acquire blocks until n tokens are available and deducts them atomically.
// The wait budget is the context deadline: when it elapses before tokens are
// available the call fails with a Timeout kind, and caller cancellation
// surfaces as Cancelled. A context with an already-expired deadline never
// blocks: it returns immediately with success (tokens available) or Timeout.
func (l *Limiter) Acquire(ctx context.Context, n int) error {
	if n < 1 {
		n = 1
	}

	// Fast path: tokens already available, no waiting or fairness concerns.
	if l.lim.AllowN(time.Now(), n) {
		return nil
	}

	if err := l.lim.WaitN(ctx, n); err != nil {
		if ctx.Err() == context.Canceled {
			return resilience.NewError(resilience.KindCancelled, eris.Wrap(err, "ratelimit: acquire cancelled"))
		}
		// WaitN fails up front when the deadline cannot cover the wait.
		return resilience.NewError(resilience.KindTimeout, eris.Wrap(err, "ratelimit: wait budget exhausted"))
	}
	return nil
}

// Snapshot returns the current token count, capacity, and refill rate.
func (l *Limiter) Snapshot() Snapshot {
	return Snapshot{
		Tokens:       l.lim.Tokens(),
		Capacity:     l.lim.Burst(),
		RefillPerSec: float64(l.lim.Limit()),
	}
}
