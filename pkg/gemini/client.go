// Package gemini is a minimal HTTP client for the Google Generative
// Language API: text generation plus embeddings.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultBaseURL    = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel      = "gemini-2.0-flash"
	defaultEmbedModel = "text-embedding-004"
)

// Client performs content generation and embedding against the Gemini API.
type Client interface {
	GenerateContent(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
	EmbedContent(ctx context.Context, text string, dimension int) ([]float32, error)
}

// GenerateRequest is our request shape for generateContent.
type GenerateRequest struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature *float64
}

// GenerateResponse is the parsed result of a generateContent call.
type GenerateResponse struct {
	Text         string
	PromptTokens int
	OutputTokens int
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithModel overrides the default generation model.
func WithModel(model string) Option {
	return func(c *httpClient) {
		c.model = model
	}
}

// WithEmbedModel overrides the default embedding model.
func WithEmbedModel(model string) Option {
	return func(c *httpClient) {
		c.embedModel = model
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey     string
	baseURL    string
	model      string
	embedModel string
	http       *http.Client
}

// NewClient creates a Gemini API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		embedModel: defaultEmbedModel,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Wire types for generateContent.

type generatePayload struct {
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	Contents          []content         `json:"contents"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
}

type generateResult struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

func (c *httpClient) GenerateContent(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	payload := generatePayload{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: req.Prompt}}},
		},
	}
	if req.System != "" {
		payload.SystemInstruction = &content{Parts: []part{{Text: req.System}}}
	}
	if req.MaxTokens > 0 || req.Temperature != nil {
		payload.GenerationConfig = &generationConfig{
			MaxOutputTokens: req.MaxTokens,
			Temperature:     req.Temperature,
		}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, model)
	body, err := c.post(ctx, url, payload)
	if err != nil {
		return nil, err
	}

	var result generateResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "gemini: decode response")
	}
	if len(result.Candidates) == 0 {
		return nil, eris.New("gemini: empty candidate list")
	}

	var text string
	for _, p := range result.Candidates[0].Content.Parts {
		text += p.Text
	}

	return &GenerateResponse{
		Text:         text,
		PromptTokens: result.UsageMetadata.PromptTokenCount,
		OutputTokens: result.UsageMetadata.CandidatesTokenCount,
	}, nil
}

type embedPayload struct {
	Content              content `json:"content"`
	OutputDimensionality int     `json:"outputDimensionality,omitempty"`
}

type embedResult struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

func (c *httpClient) EmbedContent(ctx context.Context, text string, dimension int) ([]float32, error) {
	payload := embedPayload{
		Content:              content{Parts: []part{{Text: text}}},
		OutputDimensionality: dimension,
	}

	url := fmt.Sprintf("%s/models/%s:embedContent", c.baseURL, c.embedModel)
	body, err := c.post(ctx, url, payload)
	if err != nil {
		return nil, err
	}

	var result embedResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "gemini: decode embedding")
	}
	if len(result.Embedding.Values) == 0 {
		return nil, eris.New("gemini: empty embedding")
	}
	return result.Embedding.Values, nil
}

// StatusError carries a non-2xx HTTP status for upstream classification.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gemini: unexpected status %d: %s", e.StatusCode, e.Body)
}

func (c *httpClient) post(ctx context.Context, url string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return nil, eris.Wrap(err, "gemini: read response")
	}

	if resp.StatusCode != http.StatusOK {
		msg := string(respBody)
		if len(msg) > 500 {
			msg = msg[:500]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: msg}
	}

	return respBody, nil
}
