// Package research drives the four-phase company analysis: discover the
// site's pages, select the informative ones, extract their text, and
// aggregate a structured record with an embedding. All retry, timeout, and
// budget decisions live here; workers and the extractor only classify.
package research

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AntoineDubuc/theodore/internal/discovery"
	"github.com/AntoineDubuc/theodore/internal/model"
	"github.com/AntoineDubuc/theodore/internal/resilience"
)

// TaskRunner submits LLM tasks for execution. *worker.Pool satisfies it.
type TaskRunner interface {
	Submit(task model.LLMTask) <-chan model.LLMResult
}

// SiteDiscoverer enumerates candidate pages for a site.
type SiteDiscoverer interface {
	Discover(ctx context.Context, siteRoot string) (*model.CandidateSet, error)
}

// PageExtractor turns URLs into page text.
type PageExtractor interface {
	Extract(ctx context.Context, urls []string, maxConcurrent int) []model.PageContent
}

// ComplexityReader reports hosts known to be slow.
type ComplexityReader interface {
	IsComplex(host string) bool
}

// Config tunes the orchestrator. Zero values take the defaults.
type Config struct {
	OverallDeadline      time.Duration
	CorpusBudget         int
	MaxConcurrentExtract int
	SelectionTimeout     time.Duration
	AggregationTimeout   time.Duration
	TimeoutComplex       time.Duration
	TimeoutMax           time.Duration
	TimeoutFactor        float64

	// SelectionRetry and AggregationRetry override the per-phase retry
	// schedules. ShouldRetry and OnRetry are always set internally.
	SelectionRetry   resilience.RetryConfig
	AggregationRetry resilience.RetryConfig
}

const (
	defaultOverallDeadline    = 90 * time.Second
	defaultSelectionTimeout   = 30 * time.Second
	defaultAggregationTimeout = 60 * time.Second
	defaultTimeoutComplex     = 60 * time.Second
	defaultTimeoutMax         = 120 * time.Second
	defaultTimeoutFactor      = 1.5
	defaultExtractConcurrency = 10
)

// Orchestrator runs analyses. Safe for concurrent callers; all per-company
// state lives on the stack of Analyze.
type Orchestrator struct {
	cfg        Config
	pool       TaskRunner
	disc       SiteDiscoverer
	ext        PageExtractor
	complexity ComplexityReader
	probe      *http.Client
}

// New creates an Orchestrator. complexity may be nil when no tracker is
// shared.
func New(cfg Config, pool TaskRunner, disc SiteDiscoverer, ext PageExtractor, complexity ComplexityReader) *Orchestrator {
	if cfg.OverallDeadline <= 0 {
		cfg.OverallDeadline = defaultOverallDeadline
	}
	if cfg.CorpusBudget <= 0 {
		cfg.CorpusBudget = defaultCorpusBudget
	}
	if cfg.MaxConcurrentExtract <= 0 {
		cfg.MaxConcurrentExtract = defaultExtractConcurrency
	}
	if cfg.SelectionTimeout <= 0 {
		cfg.SelectionTimeout = defaultSelectionTimeout
	}
	if cfg.AggregationTimeout <= 0 {
		cfg.AggregationTimeout = defaultAggregationTimeout
	}
	if cfg.TimeoutComplex <= 0 {
		cfg.TimeoutComplex = defaultTimeoutComplex
	}
	if cfg.TimeoutMax <= 0 {
		cfg.TimeoutMax = defaultTimeoutMax
	}
	if cfg.TimeoutFactor <= 0 {
		cfg.TimeoutFactor = defaultTimeoutFactor
	}
	if cfg.SelectionRetry.MaxAttempts <= 0 {
		cfg.SelectionRetry = resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 2 * time.Second,
			MaxBackoff:     30 * time.Second,
			Multiplier:     2.0,
			JitterFraction: 1.0,
		}
	}
	if cfg.AggregationRetry.MaxAttempts <= 0 {
		cfg.AggregationRetry = resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 3 * time.Second,
			MaxBackoff:     60 * time.Second,
			Multiplier:     2.0,
			JitterFraction: 0.25,
		}
	}
	return &Orchestrator{
		cfg:        cfg,
		pool:       pool,
		disc:       disc,
		ext:        ext,
		complexity: complexity,
		probe:      &http.Client{Timeout: 5 * time.Second},
	}
}

// Analyze researches one company. The result is never nil: success carries a
// record, partial success carries a record plus warnings, failure carries
// the classification. Safe for concurrent callers.
func (o *Orchestrator) Analyze(ctx context.Context, companyName, website string) *model.AnalysisResult {
	start := time.Now()
	log := zap.L().With(zap.String("company", companyName))

	ctx, cancel := context.WithTimeout(ctx, o.cfg.OverallDeadline)
	defer cancel()

	if website == "" {
		resolved, err := ResolveWebsite(ctx, o.probe, companyName)
		if err != nil {
			return failure(err, "no website known or resolvable", start)
		}
		website = resolved
	}
	siteRoot, err := discovery.NormalizeURL(website)
	if err != nil {
		return failure(err, "website is not a usable url", start)
	}

	var usage model.TokenUsage
	var warnings []string

	// Phase 1: discovery.
	candidates, err := o.disc.Discover(ctx, siteRoot)
	if err != nil {
		return failure(err, "site discovery failed", start)
	}
	if candidates.Len() == 0 {
		candidates = o.guessURLs(ctx, siteRoot)
		if candidates.Len() > 0 {
			warnings = append(warnings, "discovery empty, used heuristic guess list")
		}
	}
	if candidates.Len() == 0 {
		return failure(
			resilience.Errorf(resilience.KindNoContent, "research: no reachable pages for "+siteRoot),
			"no candidate pages", start)
	}
	log.Debug("discovery done", zap.Int("candidates", candidates.Len()))

	// Phase 2: page selection.
	selected, selUsage, err := o.selectPages(ctx, companyName, siteRoot, candidates)
	usage.Add(selUsage)
	if err != nil {
		if kind := resilience.KindOf(err); kind == resilience.KindQuotaExceeded || kind == resilience.KindProviderFatal {
			return failure(err, "page selection failed", start)
		}
		selected = heuristicSelect(candidates.Entries())
		warnings = append(warnings, "page selection fell back to heuristics")
	}
	if err := budgetErr(ctx, "page selection"); err != nil {
		return failure(err, "analysis budget elapsed", start)
	}
	log.Debug("selection done", zap.Int("selected", len(selected)))

	// Phase 3: content extraction.
	pages := o.ext.Extract(ctx, selected, o.cfg.MaxConcurrentExtract)
	corpus, corpusWarnings := buildCorpus(pages, o.cfg.CorpusBudget)
	warnings = append(warnings, corpusWarnings...)
	if corpus == "" {
		if err := budgetErr(ctx, "extraction"); err != nil {
			return failure(err, "analysis budget elapsed", start)
		}
		return failure(
			resilience.Errorf(resilience.KindNoContent, "research: every selected page failed"),
			"no extractable content", start)
	}
	log.Debug("extraction done", zap.Int("pages", len(pages)), zap.Int("corpus_chars", len(corpus)))

	// Phase 4: aggregation.
	record := model.NewCompanyRecord(companyName, siteRoot)
	record.ID = uuid.NewString()
	aggUsage, err := o.aggregate(ctx, record, corpus)
	usage.Add(aggUsage)
	if err != nil {
		if err := budgetErr(ctx, "aggregation"); err != nil {
			return failure(err, "analysis budget elapsed", start)
		}
		return failure(err, "aggregation failed", start)
	}

	// Embedding, best effort: a record without a vector is still useful.
	if vec, embUsage, err := o.embed(ctx, record); err != nil {
		warnings = append(warnings, "embedding unavailable: "+err.Error())
	} else {
		record.Embedding = vec
		usage.Add(embUsage)
	}
	record.Usage = usage

	outcome := model.OutcomeSuccess
	if len(warnings) > 0 {
		outcome = model.OutcomePartial
	}
	log.Info("analysis complete",
		zap.String("outcome", string(outcome)),
		zap.Int("fields", len(record.Fields)),
		zap.Int("warnings", len(warnings)),
		zap.Duration("duration", time.Since(start)),
		zap.Float64("cost_usd", usage.CostUSD),
	)
	return &model.AnalysisResult{
		Outcome:  outcome,
		Record:   record,
		Warnings: warnings,
		Duration: time.Since(start),
		Usage:    usage,
	}
}

// selectPages runs the LLM page-selection task with retries and returns the
// chosen URLs.
func (o *Orchestrator) selectPages(ctx context.Context, companyName, siteRoot string, candidates *model.CandidateSet) ([]string, model.TokenUsage, error) {
	capped := capCandidates(candidates.Entries(), selectionCap)
	allowed := make(map[string]bool, len(capped))
	for _, c := range capped {
		allowed[c.URL] = true
	}
	prompt := buildSelectionPrompt(companyName, capped)

	retryCfg := o.cfg.SelectionRetry
	retryCfg.ShouldRetry = llmPhaseRetryable
	retryCfg.OnRetry = resilience.RetryLogger("research", "page_selection")

	var usage model.TokenUsage
	urls, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context, attempt int) ([]string, error) {
		res := <-o.pool.Submit(model.LLMTask{
			ID:        uuid.NewString(),
			Kind:      model.TaskPageSelection,
			Prompt:    prompt,
			System:    selectionSystem,
			MaxTokens: 2048,
			Deadline:  o.taskDeadline(ctx, o.cfg.SelectionTimeout, siteRoot, attempt),
		})
		usage.Add(res.Usage)
		if !res.Success {
			return nil, res.Err()
		}
		return parseSelection(res.Content, allowed)
	})
	if err != nil {
		return nil, usage, quotaCheck(err)
	}
	return urls, usage, nil
}

// aggregate runs the LLM aggregation task with retries and fills record.
func (o *Orchestrator) aggregate(ctx context.Context, record *model.CompanyRecord, corpus string) (model.TokenUsage, error) {
	prompt := buildAggregationPrompt(record.Name, record.Website, corpus)

	retryCfg := o.cfg.AggregationRetry
	retryCfg.ShouldRetry = llmPhaseRetryable
	retryCfg.OnRetry = resilience.RetryLogger("research", "aggregation")

	var usage model.TokenUsage
	err := resilience.Do(ctx, retryCfg, func(ctx context.Context, attempt int) error {
		res := <-o.pool.Submit(model.LLMTask{
			ID:        uuid.NewString(),
			Kind:      model.TaskAggregation,
			Prompt:    prompt,
			System:    aggregationSystem,
			MaxTokens: 4096,
			Deadline:  o.taskDeadline(ctx, o.cfg.AggregationTimeout, record.Website, attempt),
		})
		usage.Add(res.Usage)
		if !res.Success {
			return res.Err()
		}
		return parseRecord(res.Content, record)
	})
	if err != nil {
		return usage, quotaCheck(err)
	}
	return usage, nil
}

// embed requests the record's embedding through the pool, so it shares the
// rate limiter with everything else.
func (o *Orchestrator) embed(ctx context.Context, record *model.CompanyRecord) ([]float32, model.TokenUsage, error) {
	res := <-o.pool.Submit(model.LLMTask{
		ID:       uuid.NewString(),
		Kind:     model.TaskEmbedding,
		Prompt:   record.EmbeddingText(),
		Deadline: o.taskDeadline(ctx, 30*time.Second, record.Website, 0),
	})
	if !res.Success {
		return nil, res.Usage, res.Err()
	}
	return res.Embedding, res.Usage, nil
}

// taskDeadline computes a per-attempt task deadline: the base call timeout,
// raised for complex hosts, scaled per retry, capped by the configured
// maximum and by the overall context deadline.
func (o *Orchestrator) taskDeadline(ctx context.Context, base time.Duration, site string, attempt int) time.Time {
	if o.complexity != nil {
		if u, err := url.Parse(site); err == nil && o.complexity.IsComplex(u.Hostname()) && base < o.cfg.TimeoutComplex {
			base = o.cfg.TimeoutComplex
		}
	}
	d := resilience.ScaleTimeout(base, o.cfg.TimeoutFactor, attempt, o.cfg.TimeoutMax)
	deadline := time.Now().Add(d)
	if overall, ok := ctx.Deadline(); ok && overall.Before(deadline) {
		deadline = overall
	}
	return deadline
}

// llmPhaseRetryable is the retry predicate for the selection and aggregation
// phases: transient provider failures plus unparsable responses.
func llmPhaseRetryable(err error) bool {
	switch resilience.KindOf(err) {
	case resilience.KindTimeout, resilience.KindTransport, resilience.KindRateLimited, resilience.KindInvalidResponse:
		return true
	default:
		return false
	}
}

// quotaCheck upgrades a rate-limit failure that survived the whole retry
// budget: repeated 429s mean the external quota changed under us.
func quotaCheck(err error) error {
	if resilience.KindOf(err) == resilience.KindRateLimited {
		return resilience.NewError(resilience.KindQuotaExceeded, err)
	}
	return err
}

// budgetErr classifies an elapsed context: the overall budget running out is
// a Deadline, an explicit caller cancellation is Cancelled. Nil while the
// context is still live.
func budgetErr(ctx context.Context, during string) error {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return resilience.Errorf(resilience.KindDeadline, "research: deadline during "+during)
	case context.Canceled:
		return resilience.Errorf(resilience.KindCancelled, "research: cancelled during "+during)
	}
	return nil
}

func failure(err error, msg string, start time.Time) *model.AnalysisResult {
	kind := resilience.KindOf(err)
	if kind == "" {
		kind = resilience.KindUnknown
	}
	zap.L().Warn("analysis failed",
		zap.String("error_kind", string(kind)),
		zap.String("message", msg),
		zap.Error(err),
	)
	return &model.AnalysisResult{
		Outcome:  model.OutcomeFailure,
		ErrKind:  kind,
		Message:  msg,
		Duration: time.Since(start),
	}
}
