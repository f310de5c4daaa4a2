package llm

import (
	"context"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/rotisserie/eris"

	"github.com/AntoineDubuc/theodore/internal/resilience"
	"github.com/AntoineDubuc/theodore/pkg/anthropic"
	"github.com/AntoineDubuc/theodore/pkg/gemini"
)

const defaultAnthropicModel = "claude-haiku-4-5-20251001"

// anthropicProvider backs Complete with the Anthropic API and delegates
// Embed to Gemini, which is the only backend with an embedding endpoint.
type anthropicProvider struct {
	client   anthropic.Client
	embedder gemini.Client
	model    string
	embedDim int
}

func newAnthropicProvider(cfg Config) *anthropicProvider {
	model := cfg.AnthropicModel
	if model == "" {
		model = defaultAnthropicModel
	}
	return &anthropicProvider{
		client:   anthropic.NewClient(cfg.AnthropicKey),
		embedder: gemini.NewClient(cfg.GeminiKey),
		model:    model,
		embedDim: cfg.EmbedDimension,
	}
}

func (p *anthropicProvider) Complete(ctx context.Context, req CompleteRequest) (*Completion, error) {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	msgReq := anthropic.MessageRequest{
		Model:     p.model,
		MaxTokens: maxTokens,
		System:    req.System,
		Messages: []anthropic.Message{
			{Role: "user", Content: req.Prompt},
		},
	}
	if req.Temperature > 0 {
		msgReq.Temperature = &req.Temperature
	}

	resp, err := p.client.CreateMessage(ctx, msgReq)
	if err != nil {
		return nil, classifyAnthropicErr(err)
	}

	text := anthropic.ExtractText(resp)
	if text == "" {
		return nil, resilience.Errorf(resilience.KindInvalidResponse, "llm: anthropic returned no text content")
	}

	return &Completion{
		Text:         text,
		TokensIn:     int(resp.Usage.InputTokens),
		TokensOut:    int(resp.Usage.OutputTokens),
		CostEstimate: resp.Usage.EstimateCost(resp.Model),
	}, nil
}

func (p *anthropicProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := p.embedder.EmbedContent(ctx, text, p.embedDim)
	if err != nil {
		return nil, classifyGeminiErr(err)
	}
	return vec, nil
}

// Health issues a one-token completion as a liveness probe.
func (p *anthropicProvider) Health(ctx context.Context) error {
	_, err := p.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     p.model,
		MaxTokens: 1,
		Messages:  []anthropic.Message{{Role: "user", Content: "ping"}},
	})
	if err != nil {
		return classifyAnthropicErr(err)
	}
	return nil
}

// classifyAnthropicErr maps SDK errors to resilience kinds. HTTP status from
// the API error wins; anything else falls through to the generic classifier.
func classifyAnthropicErr(err error) error {
	var apierr *sdk.Error
	if eris.As(err, &apierr) {
		if kind := resilience.KindOfHTTPStatus(apierr.StatusCode); kind != "" {
			return resilience.NewError(kind, err)
		}
	}
	if kind := resilience.KindOf(err); kind != resilience.KindUnknown {
		return resilience.NewError(kind, err)
	}
	return resilience.NewError(resilience.KindUnknown, err)
}
