// Package worker runs LLM tasks on a fixed pool of goroutines, each with its
// own provider session, all gated by a shared rate limiter.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/AntoineDubuc/theodore/internal/llm"
	"github.com/AntoineDubuc/theodore/internal/model"
	"github.com/AntoineDubuc/theodore/internal/ratelimit"
	"github.com/AntoineDubuc/theodore/internal/resilience"
)

const (
	// defaultCallTimeout bounds a single provider call.
	defaultCallTimeout = 30 * time.Second
	// longCallTimeout applies to aggregation tasks over large prompts.
	longCallTimeout = 60 * time.Second
	// longPromptChars is the prompt size above which aggregation gets the
	// longer budget.
	longPromptChars = 10000

	defaultQueueSize = 256
)

// Config parameterizes the pool.
type Config struct {
	Workers     int
	QueueSize   int
	CallTimeout time.Duration
	LongTimeout time.Duration
}

type job struct {
	task model.LLMTask
	out  chan model.LLMResult
}

// Pool dispatches LLMTasks to a fixed set of workers. Each worker builds its
// own provider via the factory so sessions are isolated. Submit returns a
// one-shot result channel; Shutdown drains in-flight work and fails anything
// still queued with a cancelled result, so no task is silently dropped.
type Pool struct {
	cfg     Config
	limiter *ratelimit.Limiter
	factory llm.Factory

	jobs   chan job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewPool starts cfg.Workers goroutines, each with its own provider.
func NewPool(cfg Config, limiter *ratelimit.Limiter, factory llm.Factory) *Pool {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.LongTimeout <= 0 {
		cfg.LongTimeout = longCallTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		cfg:     cfg,
		limiter: limiter,
		factory: factory,
		jobs:    make(chan job, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.run(i)
	}
	return p
}

// Submit enqueues a task and returns a channel that receives exactly one
// result. A task submitted after Shutdown fails immediately with a cancelled
// result rather than blocking.
func (p *Pool) Submit(task model.LLMTask) <-chan model.LLMResult {
	out := make(chan model.LLMResult, 1)

	// The lock is held across the send so Shutdown cannot close the channel
	// underneath us. Workers drain independently, so the send never blocks
	// Shutdown indefinitely.
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		out <- cancelledResult(task, "pool is shut down")
		return out
	}

	select {
	case p.jobs <- job{task: task, out: out}:
	case <-p.ctx.Done():
		out <- cancelledResult(task, "pool is shutting down")
	}
	return out
}

// Shutdown stops intake and waits for workers to drain the queue. If ctx
// expires first the pool aborts: workers stop after their current call and
// every remaining queued task receives a cancelled result.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		// Workers exit on ctx cancel without ranging the channel dry, so
		// flush whatever is still queued.
		for j := range p.jobs {
			j.out <- cancelledResult(j.task, "pool shutdown aborted")
		}
		return eris.Wrap(ctx.Err(), "worker: shutdown drain aborted")
	}
}

func (p *Pool) run(id int) {
	defer p.wg.Done()

	provider := p.factory()
	log := zap.L().With(zap.Int("worker", id))

	for {
		select {
		case <-p.ctx.Done():
			return
		case j, ok := <-p.jobs:
			if !ok {
				return
			}
			j.out <- p.execute(p.ctx, provider, log, j.task)
		}
	}
}

func (p *Pool) execute(ctx context.Context, provider llm.Provider, log *zap.Logger, task model.LLMTask) model.LLMResult {
	start := time.Now()

	// The task deadline caps everything, including the limiter wait.
	if !task.Deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, task.Deadline)
		defer cancel()
	}

	if err := p.limiter.Acquire(ctx, 1); err != nil {
		return failedResult(task, err, time.Since(start))
	}

	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout(task))
	defer cancel()

	var res model.LLMResult
	if task.Kind == model.TaskEmbedding {
		vec, err := provider.Embed(callCtx, task.Prompt)
		if err != nil {
			res = failedResult(task, err, time.Since(start))
		} else {
			res = model.LLMResult{
				TaskID:    task.ID,
				Success:   true,
				Embedding: vec,
				Duration:  time.Since(start),
			}
		}
	} else {
		comp, err := provider.Complete(callCtx, llm.CompleteRequest{
			Prompt:    task.Prompt,
			System:    task.System,
			MaxTokens: task.MaxTokens,
		})
		if err != nil {
			res = failedResult(task, err, time.Since(start))
		} else {
			res = model.LLMResult{
				TaskID:  task.ID,
				Success: true,
				Content: comp.Text,
				Usage: model.TokenUsage{
					InputTokens:  comp.TokensIn,
					OutputTokens: comp.TokensOut,
					CostUSD:      comp.CostEstimate,
				},
				Duration: time.Since(start),
			}
		}
	}

	if !res.Success {
		log.Warn("task failed",
			zap.String("task_id", task.ID),
			zap.String("kind", string(task.Kind)),
			zap.String("error_kind", string(res.ErrKind)),
			zap.Duration("duration", res.Duration),
		)
	} else {
		log.Debug("task done",
			zap.String("task_id", task.ID),
			zap.String("kind", string(task.Kind)),
			zap.Duration("duration", res.Duration),
		)
	}
	return res
}

func (p *Pool) callTimeout(task model.LLMTask) time.Duration {
	if task.Kind == model.TaskAggregation && len(task.Prompt) > longPromptChars {
		return p.cfg.LongTimeout
	}
	return p.cfg.CallTimeout
}

func failedResult(task model.LLMTask, err error, d time.Duration) model.LLMResult {
	return model.LLMResult{
		TaskID:   task.ID,
		Success:  false,
		ErrKind:  resilience.KindOf(err),
		ErrMsg:   err.Error(),
		Duration: d,
	}
}

func cancelledResult(task model.LLMTask, msg string) model.LLMResult {
	return model.LLMResult{
		TaskID:  task.ID,
		Success: false,
		ErrKind: resilience.KindCancelled,
		ErrMsg:  msg,
	}
}
