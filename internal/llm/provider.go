// Package llm defines the capability interface the pipeline uses to talk to
// model providers, plus the concrete adapters. Provider selection is a
// startup decision; the pipeline never branches on provider identity.
package llm

import (
	"context"

	"github.com/rotisserie/eris"
)

// CompleteRequest is the single call shape every provider supports.
type CompleteRequest struct {
	Prompt      string
	System      string
	MaxTokens   int
	Temperature float64
}

// Completion is the provider-neutral result of a Complete call.
type Completion struct {
	Text         string
	TokensIn     int
	TokensOut    int
	CostEstimate float64
}

// Provider is the capability interface for an LLM backend: completion,
// embedding, and a cheap liveness probe. Errors carry a resilience.ErrorKind
// in their chain so callers can classify without provider knowledge.
type Provider interface {
	Complete(ctx context.Context, req CompleteRequest) (*Completion, error)
	Embed(ctx context.Context, text string) ([]float32, error)
	Health(ctx context.Context) error
}

// Factory builds a fresh Provider with its own network session. Each pool
// worker calls it once, so a hung connection in one worker cannot stall the
// others.
type Factory func() Provider

// Config selects and parameterizes the provider stack at startup.
type Config struct {
	// Provider is "anthropic" or "gemini".
	Provider string

	AnthropicKey   string
	AnthropicModel string

	GeminiKey   string
	GeminiModel string

	// EmbedDimension is the fixed embedding width D.
	EmbedDimension int
}

// NewFactory returns a Factory for the configured provider. Embeddings
// always route to Gemini (Anthropic exposes no embedding endpoint), so a
// Gemini key is required either way.
func NewFactory(cfg Config) (Factory, error) {
	if cfg.EmbedDimension <= 0 {
		cfg.EmbedDimension = 1536
	}
	if cfg.GeminiKey == "" {
		return nil, eris.New("llm: gemini api key is required for embeddings")
	}

	switch cfg.Provider {
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return nil, eris.New("llm: anthropic api key is required")
		}
		return func() Provider {
			return newAnthropicProvider(cfg)
		}, nil
	case "gemini":
		return func() Provider {
			return newGeminiProvider(cfg)
		}, nil
	default:
		return nil, eris.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}
