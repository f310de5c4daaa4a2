// Package similarity finds companies related to a target: a vector-store
// nearest-neighbor query first, topped up by an LLM expansion pass when the
// store has too little coverage.
package similarity

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/AntoineDubuc/theodore/internal/model"
	"github.com/AntoineDubuc/theodore/internal/research"
	"github.com/AntoineDubuc/theodore/internal/resilience"
	"github.com/AntoineDubuc/theodore/internal/vectorstore"
)

const (
	defaultMaxResults = 10

	expansionSystem = `You are a market analyst. List real companies similar to the target. Respond with JSON only, no prose.`

	surfaceSystem = `You are a research assistant. Summarize what a company does from its homepage text. Respond with JSON only: {"description": string, "relationship_kind": string}.`
)

// Config tunes the engine.
type Config struct {
	MaxResults int
	// SurfaceScrape enables the homepage scrape for expansion hits that
	// come back without a description.
	SurfaceScrape bool
	Retry         resilience.RetryConfig
}

// Engine answers find-similar queries. Safe for concurrent use.
type Engine struct {
	cfg   Config
	store vectorstore.Store
	pool  research.TaskRunner
	ext   research.PageExtractor
	probe *http.Client
}

// New creates an Engine. ext may be nil when surface scraping is disabled.
func New(cfg Config, store vectorstore.Store, pool research.TaskRunner, ext research.PageExtractor) *Engine {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = defaultMaxResults
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 2 * time.Second,
			MaxBackoff:     30 * time.Second,
			Multiplier:     2.0,
			JitterFraction: 0.25,
		}
	}
	return &Engine{
		cfg:   cfg,
		store: store,
		pool:  pool,
		ext:   ext,
		probe: &http.Client{Timeout: 5 * time.Second},
	}
}

// FindSimilar returns up to max companies similar to name, best first.
// Vector-store hits come back first; the LLM expansion only runs when the
// store cannot fill the request, and its hits always rank below the vector
// hits.
func (e *Engine) FindSimilar(ctx context.Context, name string, max int) ([]model.SimilarCompany, error) {
	if max <= 0 {
		max = e.cfg.MaxResults
	}
	log := zap.L().With(zap.String("target", name))

	vectorHits, err := e.vectorPhase(ctx, name, max)
	if err != nil {
		return nil, err
	}
	log.Debug("vector phase done", zap.Int("hits", len(vectorHits)))

	results := vectorHits
	if len(results) < max {
		expanded, err := e.expansionPhase(ctx, name, max-len(results), lowestScore(vectorHits))
		if err != nil {
			// The vector hits are still an answer; expansion is best effort.
			log.Warn("expansion phase failed",
				zap.String("error_kind", string(resilience.KindOf(err))),
				zap.Error(err),
			)
		} else {
			results = append(results, expanded...)
		}
	}

	results = dedupeByName(name, results)
	if len(results) > max {
		results = results[:max]
	}
	return results, nil
}

// vectorPhase looks the target up by name and runs kNN on its embedding, or
// embeds the bare name when the store has never seen the company.
func (e *Engine) vectorPhase(ctx context.Context, name string, max int) ([]model.SimilarCompany, error) {
	entry, err := e.store.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}

	var vector []float32
	var selfID string
	if entry != nil {
		vector = entry.Vector
		selfID = entry.ID
	} else {
		res := <-e.pool.Submit(model.LLMTask{
			ID:     uuid.NewString(),
			Kind:   model.TaskEmbedding,
			Prompt: name,
		})
		if !res.Success {
			zap.L().Debug("name embedding unavailable, skipping vector phase",
				zap.String("error_kind", string(res.ErrKind)))
			return nil, nil
		}
		vector = res.Embedding
	}

	// One extra so dropping the target itself still fills the request.
	hits, err := e.store.KNearest(ctx, vector, max+1)
	if err != nil {
		return nil, err
	}

	var out []model.SimilarCompany
	for _, h := range hits {
		if h.ID == selfID {
			continue
		}
		out = append(out, model.SimilarCompany{
			Name:        h.Name,
			Website:     h.Website,
			Score:       h.Score,
			Description: h.Description,
			Source:      model.SimilarFromVector,
			Researched:  true,
		})
		if len(out) == max {
			break
		}
	}
	return out, nil
}

type expansionItem struct {
	Name         string `json:"name"`
	Website      string `json:"website"`
	Relationship string `json:"relationship_kind"`
	Description  string `json:"description"`
}

// expansionPhase asks the model for additional similar companies. Scores
// are assigned by rank, scaled into the range below the weakest vector hit
// so expansion output can never outrank store evidence.
func (e *Engine) expansionPhase(ctx context.Context, name string, want int, floor float64) ([]model.SimilarCompany, error) {
	retryCfg := e.cfg.Retry
	retryCfg.ShouldRetry = func(err error) bool {
		switch resilience.KindOf(err) {
		case resilience.KindTimeout, resilience.KindTransport, resilience.KindRateLimited, resilience.KindInvalidResponse:
			return true
		default:
			return false
		}
	}
	retryCfg.OnRetry = resilience.RetryLogger("similarity", "expansion")

	items, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context, attempt int) ([]expansionItem, error) {
		res := <-e.pool.Submit(model.LLMTask{
			ID:        uuid.NewString(),
			Kind:      model.TaskExpansion,
			Prompt:    buildExpansionPrompt(name, want),
			System:    expansionSystem,
			MaxTokens: 2048,
			Deadline:  time.Now().Add(30 * time.Second),
		})
		if !res.Success {
			return nil, res.Err()
		}
		return parseExpansion(res.Content)
	})
	if err != nil {
		return nil, err
	}

	if floor <= 0 {
		floor = 0.5
	}
	var out []model.SimilarCompany
	for rank, item := range items {
		if item.Name == "" {
			continue
		}
		sc := model.SimilarCompany{
			Name:         item.Name,
			Website:      item.Website,
			Relationship: item.Relationship,
			Description:  item.Description,
			Score:        rankScore(floor, rank, len(items)),
			Source:       model.SimilarFromLLM,
		}
		if sc.Description == "" && e.cfg.SurfaceScrape {
			e.surfaceDescribe(ctx, &sc)
		}
		// Keep every item: some may duplicate vector hits and fall out
		// in the dedup pass, so truncation happens in the caller.
		out = append(out, sc)
	}
	return out, nil
}

// surfaceDescribe scrapes the company's homepage and asks the model for a
// one-line description and relationship label. Companies without a website
// get one resolved from their name first. Best effort.
func (e *Engine) surfaceDescribe(ctx context.Context, sc *model.SimilarCompany) {
	if e.ext == nil {
		return
	}
	if sc.Website == "" {
		site, err := research.ResolveWebsite(ctx, e.probe, sc.Name)
		if err != nil {
			return
		}
		sc.Website = site
	}

	pages := e.ext.Extract(ctx, []string{sc.Website}, 1)
	if len(pages) == 0 || pages[0].Method == model.ExtractFailed {
		return
	}
	text := pages[0].Text
	if len(text) > 8000 {
		text = text[:8000]
	}

	res := <-e.pool.Submit(model.LLMTask{
		ID:        uuid.NewString(),
		Kind:      model.TaskSurfaceAnalysis,
		Prompt:    "Company: " + sc.Name + "\n\n=== HOMEPAGE TEXT ===\n" + text,
		System:    surfaceSystem,
		MaxTokens: 512,
		Deadline:  time.Now().Add(30 * time.Second),
	})
	if !res.Success {
		return
	}

	var parsed struct {
		Description  string `json:"description"`
		Relationship string `json:"relationship_kind"`
	}
	if err := json.Unmarshal([]byte(research.CleanJSON(res.Content)), &parsed); err != nil {
		return
	}
	if parsed.Description != "" {
		sc.Description = parsed.Description
	}
	if sc.Relationship == "" {
		sc.Relationship = parsed.Relationship
	}
}

func buildExpansionPrompt(name string, want int) string {
	var b strings.Builder
	b.WriteString("Target company: ")
	b.WriteString(name)
	b.WriteString("\n\nList up to ")
	b.WriteString(strconv.Itoa(want))
	b.WriteString(" real companies similar to the target (competitors, adjacent players, or alternatives). ")
	b.WriteString(`Reply with a JSON array: [{"name": string, "website": string, "relationship_kind": string, "description": string}]. Leave website empty when unsure; never invent domains.`)
	return b.String()
}

func parseExpansion(text string) ([]expansionItem, error) {
	var items []expansionItem
	if err := json.Unmarshal([]byte(research.CleanJSON(text)), &items); err != nil {
		return nil, resilience.NewError(resilience.KindInvalidResponse, err)
	}
	if len(items) == 0 {
		return nil, resilience.Errorf(resilience.KindInvalidResponse, "similarity: expansion returned no companies")
	}
	return items, nil
}

// rankScore spaces LLM hits evenly through (0, floor), best rank highest.
func rankScore(floor float64, rank, total int) float64 {
	if total <= 0 {
		return 0
	}
	return floor * float64(total-rank) / float64(total+1)
}

// lowestScore returns the weakest vector hit's score, or 0 when none.
func lowestScore(hits []model.SimilarCompany) float64 {
	if len(hits) == 0 {
		return 0
	}
	low := hits[0].Score
	for _, h := range hits[1:] {
		if h.Score < low {
			low = h.Score
		}
	}
	return low
}

// dedupeByName drops repeats on the case-folded name and removes the target
// itself. Earlier entries win, so vector hits beat LLM hits.
func dedupeByName(target string, hits []model.SimilarCompany) []model.SimilarCompany {
	fold := cases.Fold()
	selfKey := fold.String(strings.TrimSpace(target))

	seen := make(map[string]bool)
	var out []model.SimilarCompany
	for _, h := range hits {
		key := fold.String(strings.TrimSpace(h.Name))
		if key == "" || key == selfKey || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, h)
	}
	return out
}
