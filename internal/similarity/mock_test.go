package similarity

import (
	"context"
	"sync"

	"github.com/AntoineDubuc/theodore/internal/model"
	"github.com/AntoineDubuc/theodore/internal/resilience"
	"github.com/AntoineDubuc/theodore/internal/vectorstore"
)

// fakeStore serves canned lookups and records kNN queries.
type fakeStore struct {
	entries map[string]*vectorstore.Entry
	hits    []vectorstore.Hit
	findErr error
	knnErr  error

	mu         sync.Mutex
	knnQueries [][]float32
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string]*vectorstore.Entry)}
}

func (s *fakeStore) Upsert(ctx context.Context, entry vectorstore.Entry) error { return nil }

func (s *fakeStore) FindByName(ctx context.Context, name string) (*vectorstore.Entry, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.entries[name], nil
}

func (s *fakeStore) KNearest(ctx context.Context, vector []float32, k int) ([]vectorstore.Hit, error) {
	s.mu.Lock()
	s.knnQueries = append(s.knnQueries, vector)
	s.mu.Unlock()
	if s.knnErr != nil {
		return nil, s.knnErr
	}
	if k > len(s.hits) {
		k = len(s.hits)
	}
	return s.hits[:k], nil
}

func (s *fakeStore) Close() error { return nil }

// fakePool scripts LLMResults per task kind; the last scripted result
// repeats.
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
	return model.LLMResult{Success: true, Content: content}
}

func errResult(kind resilience.ErrorKind) model.LLMResult {
	return model.LLMResult{Success: false, ErrKind: kind, ErrMsg: string(kind)}
}

// fakeExtractor maps URL → PageContent; unknown URLs come back failed.
type fakeExtractor struct {
	mu    sync.Mutex
	pages map[string]model.PageContent
	seen  []string
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
	e.seen = append(e.seen, urls...)
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
