// Package extract turns candidate URLs into clean text. A goquery-based
// readability pass is the primary path; html-to-markdown is the fallback
// when the primary yield is too thin.
package extract

import (
	"context"
	"net/url"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/AntoineDubuc/theodore/internal/model"
	"github.com/AntoineDubuc/theodore/internal/resilience"
)

const (
	// defaultPrimaryThreshold is the minimum character yield before the
	// fallback converter is tried.
	defaultPrimaryThreshold = 500

	defaultMaxConcurrent = 10

	// fetchAttempts is the per-URL attempt count (two retries).
	fetchAttempts = 3

	// Per-request timeout ladder: the start for hosts flagged complex, the
	// growth per retry, and the ceiling. The default start is
	// defaultFetchTimeout, shared with the fetcher.
	defaultComplexTimeout = 60 * time.Second
	defaultTimeoutMax     = 120 * time.Second
	defaultTimeoutFactor  = 1.5
)

// Config controls the extractor.
type Config struct {
	PrimaryThreshold int
	MaxConcurrent    int

	// Timeout is the initial per-request timeout; TimeoutComplex replaces
	// it for hosts the complexity tracker has flagged. Each retry scales
	// the timeout by TimeoutFactor, capped at TimeoutMax.
	Timeout        time.Duration
	TimeoutComplex time.Duration
	TimeoutMax     time.Duration
	TimeoutFactor  float64

	Retry resilience.RetryConfig
}

// Extractor fetches pages concurrently and extracts their text. Safe for
// concurrent use.
type Extractor struct {
	cfg        Config
	fetcher    *Fetcher
	complexity *SiteComplexity
}

// New creates an Extractor around a fetcher and a shared complexity tracker.
func New(cfg Config, fetcher *Fetcher, complexity *SiteComplexity) *Extractor {
	if cfg.PrimaryThreshold <= 0 {
		cfg.PrimaryThreshold = defaultPrimaryThreshold
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultFetchTimeout
	}
	if cfg.TimeoutComplex <= 0 {
		cfg.TimeoutComplex = defaultComplexTimeout
	}
	if cfg.TimeoutMax <= 0 {
		cfg.TimeoutMax = defaultTimeoutMax
	}
	if cfg.TimeoutFactor <= 0 {
		cfg.TimeoutFactor = defaultTimeoutFactor
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = resilience.RetryConfig{
			MaxAttempts:    fetchAttempts,
			InitialBackoff: time.Second,
			MaxBackoff:     10 * time.Second,
			Multiplier:     2.0,
			JitterFraction: 0.25,
		}
	}
	if complexity == nil {
		complexity = NewSiteComplexity(0)
	}
	return &Extractor{cfg: cfg, fetcher: fetcher, complexity: complexity}
}

// Complexity exposes the shared tracker.
func (e *Extractor) Complexity() *SiteComplexity {
	return e.complexity
}

// Extract processes urls with bounded concurrency and returns one
// PageContent per input URL, in input order. Failures never abort the batch:
// a page that cannot be fetched or yields no text comes back with
// extraction_method=failed and char_count=0.
func (e *Extractor) Extract(ctx context.Context, urls []string, maxConcurrent int) []model.PageContent {
	if maxConcurrent <= 0 {
		maxConcurrent = e.cfg.MaxConcurrent
	}

	results := make([]model.PageContent, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	for i, pageURL := range urls {
		g.Go(func() error {
			results[i] = e.extractOne(gctx, pageURL)
			return nil
		})
	}
	g.Wait() //nolint:errcheck

	return results
}

func (e *Extractor) extractOne(ctx context.Context, pageURL string) model.PageContent {
	start := time.Now()
	page := model.PageContent{
		URL:       pageURL,
		FetchedAt: start,
		Method:    model.ExtractFailed,
	}

	host := hostOf(pageURL)
	baseTimeout := e.cfg.Timeout
	if host != "" && e.complexity.IsComplex(host) {
		baseTimeout = e.cfg.TimeoutComplex
	}

	retryCfg := e.cfg.Retry
	if retryCfg.ShouldRetry == nil {
		retryCfg.ShouldRetry = fetchRetryable
	}
	retryCfg.OnRetry = resilience.RetryLogger("extract", "fetch")

	var attempts int
	type fetched struct {
		status int
		body   []byte
	}
	res, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context, attempt int) (fetched, error) {
		attempts = attempt + 1
		callCtx, cancel := context.WithTimeout(ctx,
			resilience.ScaleTimeout(baseTimeout, e.cfg.TimeoutFactor, attempt, e.cfg.TimeoutMax))
		defer cancel()
		status, body, err := e.fetcher.Fetch(callCtx, pageURL)
		return fetched{status: status, body: body}, err
	})
	page.RetryCount = attempts - 1
	page.HTTPStatus = res.status

	defer func() {
		if host != "" {
			e.complexity.Record(host, time.Since(start))
		}
	}()

	if err != nil {
		zap.L().Debug("page fetch failed",
			zap.String("url", pageURL),
			zap.String("error_kind", string(resilience.KindOf(err))),
			zap.Int("retries", page.RetryCount),
		)
		return page
	}

	text, method := e.extractText(string(res.body))
	if len(text) == 0 {
		return page
	}

	page.Method = method
	page.Text = text
	page.CharCount = len(text)
	return page
}

// extractText runs the primary readability pass and falls back to the
// markdown converter when the yield is below the threshold. The longer of
// the two results wins when the fallback is consulted.
func (e *Extractor) extractText(html string) (string, model.ExtractionMethod) {
	primary := normalizeWhitespace(readableText(html))
	if len(primary) >= e.cfg.PrimaryThreshold {
		return primary, model.ExtractPrimary
	}

	md, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		md = ""
	}
	fallback := normalizeWhitespace(md)

	if len(fallback) > len(primary) {
		return fallback, model.ExtractFallback
	}
	if len(primary) > 0 {
		return primary, model.ExtractPrimary
	}
	return "", model.ExtractFailed
}

// readableText strips chrome and boilerplate elements and returns the
// remaining body text.
func readableText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	doc.Find("script, style, noscript, iframe, svg, form, nav, header, footer, aside").Remove()

	// Prefer the content landmark when the page declares one.
	for _, sel := range []string{"main", "article", "[role=main]"} {
		if node := doc.Find(sel); node.Length() > 0 {
			return node.Text()
		}
	}
	return doc.Find("body").Text()
}

// normalizeWhitespace collapses runs of spaces and blank lines so the corpus
// budget is spent on words, not formatting.
func normalizeWhitespace(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		lines = append(lines, strings.Join(fields, " "))
	}
	return strings.Join(lines, "\n")
}

// fetchRetryable is the per-URL retry predicate. Only network-level trouble
// is worth another attempt; everything else fails the page.
func fetchRetryable(err error) bool {
	switch resilience.KindOf(err) {
	case resilience.KindTimeout, resilience.KindTransport:
		return true
	default:
		return false
	}
}

func hostOf(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
