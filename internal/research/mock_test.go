package research

import (
	"context"
	"sync"
	"time"

	"github.com/AntoineDubuc/theodore/internal/model"
	"github.com/AntoineDubuc/theodore/internal/resilience"
)

// fakePool scripts LLMResults per task kind. Each Submit for a kind consumes
// the next scripted result; the last one repeats.
type fakePool struct {
	mu      sync.Mutex
	scripts map[model.TaskKind][]model.LLMResult
	calls   map[model.TaskKind]int
}

func newFakePool() *fakePool {
	return &fakePool{
		scripts: make(map[model.TaskKind][]model.LLMResult),
		calls:   make(map[model.TaskKind]int),
	}
}

func (p *fakePool) script(kind model.TaskKind, results ...model.LLMResult) {
	p.scripts[kind] = append(p.scripts[kind], results...)
}

func (p *fakePool) callCount(kind model.TaskKind) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[kind]
}

func (p *fakePool) Submit(task model.LLMTask) <-chan model.LLMResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(chan model.LLMResult, 1)
	script := p.scripts[task.Kind]
	i := p.calls[task.Kind]
	p.calls[task.Kind]++

	if len(script) == 0 {
		out <- model.LLMResult{
			TaskID:  task.ID,
			Success: false,
			ErrKind: resilience.KindUnknown,
			ErrMsg:  "no script for kind " + string(task.Kind),
		}
		return out
	}
	if i >= len(script) {
		i = len(script) - 1
	}
	res := script[i]
	res.TaskID = task.ID
	out <- res
	return out
}

func okResult(content string) model.LLMResult {
	return model.LLMResult{
		Success: true,
		Content: content,
		Usage:   model.TokenUsage{InputTokens: 100, OutputTokens: 50, CostUSD: 0.01},
	}
}

func errResult(kind resilience.ErrorKind) model.LLMResult {
	return model.LLMResult{Success: false, ErrKind: kind, ErrMsg: string(kind)}
}

// fakeDiscoverer returns a fixed candidate set after an optional delay.
type fakeDiscoverer struct {
	candidates []model.Candidate
	delay      time.Duration
	err        error
}

func (d *fakeDiscoverer) Discover(ctx context.Context, siteRoot string) (*model.CandidateSet, error) {
	if d.delay > 0 {
		select {
		case <-time.After(d.delay):
		case <-ctx.Done():
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	set := model.NewCandidateSet()
	for _, c := range d.candidates {
		set.Add(c.URL, c.Source)
	}
	return set, nil
}

// fakeExtractor maps URL → PageContent; unknown URLs come back failed.
type fakeExtractor struct {
	mu    sync.Mutex
	pages map[string]model.PageContent
	seen  [][]string
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{pages: make(map[string]model.PageContent)}
}

func (e *fakeExtractor) page(url, text string) {
	e.pages[url] = model.PageContent{
		URL:       url,
		Method:    model.ExtractPrimary,
		Text:      text,
		CharCount: len(text),
	}
}

func (e *fakeExtractor) Extract(ctx context.Context, urls []string, maxConcurrent int) []model.PageContent {
	e.mu.Lock()
	e.seen = append(e.seen, urls)
	e.mu.Unlock()

	out := make([]model.PageContent, len(urls))
	for i, u := range urls {
		if p, ok := e.pages[u]; ok {
			out[i] = p
		} else {
			out[i] = model.PageContent{URL: u, Method: model.ExtractFailed}
		}
	}
	return out
}
