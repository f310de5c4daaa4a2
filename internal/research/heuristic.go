package research

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AntoineDubuc/theodore/internal/discovery"
	"github.com/AntoineDubuc/theodore/internal/model"
	"github.com/AntoineDubuc/theodore/internal/resilience"
)

// guessPaths is the fallback page list tried when discovery yields nothing.
var guessPaths = []string{
	"/", "/about", "/contact", "/careers", "/products", "/services", "/team", "/pricing",
}

// selectionPatterns drive the deterministic page selector used when the LLM
// selection fails. Order encodes priority.
var selectionPatterns = []string{
	"about", "contact", "team", "leadership", "careers", "product",
	"service", "pricing", "partner", "case-stud", "insight", "foundation",
}

// heuristicMaxURLs caps the deterministic selector's output.
const heuristicMaxURLs = 15

// guessURLs probes the standard page paths with HEAD requests and returns a
// candidate set of the ones that answer. Used when discovery comes back
// empty, typically on script-rendered sites with no sitemap.
func (o *Orchestrator) guessURLs(ctx context.Context, siteRoot string) *model.CandidateSet {
	set := model.NewCandidateSet()
	root, err := url.Parse(siteRoot)
	if err != nil {
		return set
	}

	for _, path := range guessPaths {
		guess := root.Scheme + "://" + root.Host + path
		norm, err := discovery.NormalizeURL(guess)
		if err != nil {
			continue
		}
		if headOK(ctx, o.probe, norm) {
			set.Add(norm, model.SourceRecursive)
		}
	}
	zap.L().Debug("heuristic guess list probed",
		zap.String("site", siteRoot),
		zap.Int("alive", set.Len()),
	)
	return set
}

func headOK(ctx context.Context, client *http.Client, pageURL string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, pageURL, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close() //nolint:errcheck
	return resp.StatusCode >= 200 && resp.StatusCode < 400
}

// heuristicSelect is the deterministic fallback for page selection: for each
// pattern, in priority order, the first candidate whose path matches is
// taken, capped at heuristicMaxURLs.
func heuristicSelect(candidates []model.Candidate) []string {
	var urls []string
	seen := make(map[string]bool)

	for _, pattern := range selectionPatterns {
		for _, c := range candidates {
			u, err := url.Parse(c.URL)
			if err != nil || seen[c.URL] {
				continue
			}
			if strings.Contains(strings.ToLower(u.Path), pattern) {
				seen[c.URL] = true
				urls = append(urls, c.URL)
				break
			}
		}
		if len(urls) >= heuristicMaxURLs {
			break
		}
	}
	return urls
}

// ResolveWebsite guesses a site for a company with no known website by
// slugging the name and probing common domains with client. Returns a kinded
// error when nothing answers.
func ResolveWebsite(ctx context.Context, client *http.Client, companyName string) (string, error) {
	slug := slugify(companyName)
	if slug == "" {
		return "", resilience.Errorf(resilience.KindUnknown, "research: cannot derive a domain from company name")
	}

	for _, domain := range []string{slug + ".com", "www." + slug + ".com", slug + ".io"} {
		site := "https://" + domain
		if headOK(ctx, client, site+"/") {
			zap.L().Info("resolved website from name",
				zap.String("company", companyName),
				zap.String("website", site),
			)
			return site, nil
		}
	}
	return "", resilience.Errorf(resilience.KindNoContent, "research: no website found for "+companyName)
}

// slugify lowercases a company name and strips everything but letters and
// digits, dropping common suffixes first.
func slugify(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, suffix := range []string{" inc", " inc.", " llc", " ltd", " corp", " corp.", " co", " co."} {
		name = strings.TrimSuffix(name, suffix)
	}
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
