package llm

import (
	"context"
	"sync"
	"time"
)

// StubProvider is a scripted Provider for tests. Responses are consumed in
// order; when the script runs out the stub repeats the last entry. A nil
// script always succeeds with empty output.
type StubProvider struct {
	mu        sync.Mutex
	script    []StubResponse
	next      int
	calls     int
	embedding []float32
	embedErr  error
	healthErr error
}

// StubResponse is one scripted Complete outcome.
type StubResponse struct {
	Text  string
	Err   error
	Delay time.Duration
}

// NewStub creates a stub that plays back the given responses.
func NewStub(script ...StubResponse) *StubProvider {
	return &StubProvider{script: script}
}

// WithEmbedding sets the vector returned by Embed.
func (s *StubProvider) WithEmbedding(vec []float32) *StubProvider {
	s.embedding = vec
	return s
}

// WithEmbedErr makes Embed fail.
func (s *StubProvider) WithEmbedErr(err error) *StubProvider {
	s.embedErr = err
	return s
}

// WithHealthErr makes Health fail.
func (s *StubProvider) WithHealthErr(err error) *StubProvider {
	s.healthErr = err
	return s
}

// Calls reports how many Complete calls the stub has served.
func (s *StubProvider) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *StubProvider) Complete(ctx context.Context, req CompleteRequest) (*Completion, error) {
	s.mu.Lock()
	s.calls++
	var resp StubResponse
	if len(s.script) > 0 {
		i := s.next
		if i >= len(s.script) {
			i = len(s.script) - 1
		}
		resp = s.script[i]
		s.next++
	}
	s.mu.Unlock()

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	return &Completion{Text: resp.Text, TokensIn: 10, TokensOut: 5}, nil
}

func (s *StubProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.embedErr != nil {
		return nil, s.embedErr
	}
	if s.embedding != nil {
		return s.embedding, nil
	}
	return make([]float32, 8), nil
}

func (s *StubProvider) Health(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.healthErr
}
