package llm

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/AntoineDubuc/theodore/internal/resilience"
	"github.com/AntoineDubuc/theodore/pkg/gemini"
)

// geminiProvider backs both completion and embedding with the Gemini API.
type geminiProvider struct {
	client   gemini.Client
	embedDim int
}

func newGeminiProvider(cfg Config) *geminiProvider {
	var opts []gemini.Option
	if cfg.GeminiModel != "" {
		opts = append(opts, gemini.WithModel(cfg.GeminiModel))
	}
	return &geminiProvider{
		client:   gemini.NewClient(cfg.GeminiKey, opts...),
		embedDim: cfg.EmbedDimension,
	}
}

func (p *geminiProvider) Complete(ctx context.Context, req CompleteRequest) (*Completion, error) {
	genReq := gemini.GenerateRequest{
		System:    req.System,
		Prompt:    req.Prompt,
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature > 0 {
		genReq.Temperature = &req.Temperature
	}

	resp, err := p.client.GenerateContent(ctx, genReq)
	if err != nil {
		return nil, classifyGeminiErr(err)
	}
	if resp.Text == "" {
		return nil, resilience.Errorf(resilience.KindInvalidResponse, "llm: gemini returned no text content")
	}

	return &Completion{
		Text:      resp.Text,
		TokensIn:  resp.PromptTokens,
		TokensOut: resp.OutputTokens,
	}, nil
}

func (p *geminiProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := p.client.EmbedContent(ctx, text, p.embedDim)
	if err != nil {
		return nil, classifyGeminiErr(err)
	}
	return vec, nil
}

func (p *geminiProvider) Health(ctx context.Context) error {
	_, err := p.client.GenerateContent(ctx, gemini.GenerateRequest{
		Prompt:    "ping",
		MaxTokens: 1,
	})
	if err != nil {
		return classifyGeminiErr(err)
	}
	return nil
}

func classifyGeminiErr(err error) error {
	var se *gemini.StatusError
	if eris.As(err, &se) {
		if kind := resilience.KindOfHTTPStatus(se.StatusCode); kind != "" {
			return resilience.NewError(kind, err)
		}
	}
	if kind := resilience.KindOf(err); kind != resilience.KindUnknown {
		return resilience.NewError(kind, err)
	}
	return resilience.NewError(resilience.KindUnknown, err)
}
