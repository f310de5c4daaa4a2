// Package discovery builds the candidate URL set for a company website from
// robots.txt, sitemaps, homepage navigation, and a bounded recursive crawl.
package discovery

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	"github.com/AntoineDubuc/theodore/internal/model"
)

// Config parameterizes a Discoverer. Zero values take the defaults below.
type Config struct {
	UserAgent     string
	HTTPTimeout   time.Duration
	Deadline      time.Duration
	CrawlDepth    int
	MaxCrawlPages int

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

const (
	defaultUserAgent     = "theodore-bot/1.0"
	defaultHTTPTimeout   = 10 * time.Second
	defaultDeadline      = 30 * time.Second
	defaultCrawlDepth    = 3
	defaultMaxCrawlPages = 25
)

// Discoverer finds candidate pages for one site at a time. Safe for
// concurrent use.
type Discoverer struct {
	cfg  Config
	http *http.Client
}

// New creates a Discoverer.
func New(cfg Config) *Discoverer {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = defaultHTTPTimeout
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = defaultDeadline
	}
	if cfg.CrawlDepth <= 0 {
		cfg.CrawlDepth = defaultCrawlDepth
	}
	if cfg.MaxCrawlPages <= 0 {
		cfg.MaxCrawlPages = defaultMaxCrawlPages
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	return &Discoverer{cfg: cfg, http: hc}
}

// Discover returns the candidate set for siteRoot. The whole walk runs under
// a hard deadline; when it elapses the candidates gathered so far are
// returned, never an error. Sub-steps fail independently: a missing sitemap
// does not stop the nav scan, and an unreachable site yields an empty set.
// The only error case is an unusable siteRoot.
func (d *Discoverer) Discover(ctx context.Context, siteRoot string) (*model.CandidateSet, error) {
	root, err := NormalizeURL(siteRoot)
	if err != nil {
		return nil, eris.Wrap(err, "discovery: site root")
	}
	rootURL, err := url.Parse(root)
	if err != nil {
		return nil, eris.Wrap(err, "discovery: site root")
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.Deadline)
	defer cancel()

	log := zap.L().With(zap.String("site", root))
	start := time.Now()
	set := model.NewCandidateSet()

	group, sitemaps := d.loadRobots(ctx, rootURL)

	// Sitemap URLs come first so the selection phase sees the site's own map
	// of itself before anything inferred.
	visited := make(map[string]bool)
	var pages []string
	for _, sm := range sitemaps {
		d.collectSitemap(ctx, sm, 0, visited, &pages)
	}
	for _, p := range pages {
		d.add(set, rootURL, group, p, model.SourceSitemap)
	}
	sitemapCount := set.Len()

	// Homepage navigation anchors.
	homeDoc := d.fetchDoc(ctx, root)
	if homeDoc != nil {
		for _, link := range navAnchors(homeDoc, rootURL) {
			d.add(set, rootURL, group, link, model.SourceNav)
		}
	}
	navCount := set.Len() - sitemapCount

	// Bounded recursive crawl from the homepage.
	if homeDoc != nil && ctx.Err() == nil {
		d.crawl(ctx, set, rootURL, group, homeDoc)
	}

	log.Info("discovery complete",
		zap.Int("candidates", set.Len()),
		zap.Int("from_sitemap", sitemapCount),
		zap.Int("from_nav", navCount),
		zap.Int("from_crawl", set.Len()-sitemapCount-navCount),
		zap.Duration("duration", time.Since(start)),
		zap.Bool("deadline_hit", ctx.Err() != nil),
	)
	return set, nil
}

// loadRobots fetches robots.txt and returns the access group for our agent
// plus the sitemap URLs to walk. The default /sitemap.xml location is always
// included. A missing or broken robots.txt allows everything.
func (d *Discoverer) loadRobots(ctx context.Context, rootURL *url.URL) (*robotstxt.Group, []string) {
	defaultSitemap := rootURL.Scheme + "://" + rootURL.Host + "/sitemap.xml"

	body, err := d.fetch(ctx, rootURL.Scheme+"://"+rootURL.Host+"/robots.txt")
	if err != nil {
		zap.L().Debug("robots.txt unavailable", zap.String("host", rootURL.Host), zap.Error(err))
		return nil, []string{defaultSitemap}
	}

	robots, err := robotstxt.FromBytes(body)
	if err != nil {
		zap.L().Debug("robots.txt unparsable", zap.String("host", rootURL.Host), zap.Error(err))
		return nil, []string{defaultSitemap}
	}

	sitemaps := append([]string{}, robots.Sitemaps...)
	sitemaps = append(sitemaps, defaultSitemap)
	return robots.FindGroup(d.cfg.UserAgent), sitemaps
}

// add normalizes, filters, and inserts one candidate URL. Off-site URLs and
// robots-disallowed paths are dropped.
func (d *Discoverer) add(set *model.CandidateSet, rootURL *url.URL, group *robotstxt.Group, raw string, source model.URLSource) bool {
	norm, ok := d.eligible(rootURL, group, raw)
	if !ok {
		return false
	}
	return set.Add(norm, source)
}

// eligible normalizes raw and reports whether it is a same-site,
// robots-allowed URL.
func (d *Discoverer) eligible(rootURL *url.URL, group *robotstxt.Group, raw string) (string, bool) {
	norm, err := NormalizeURL(raw)
	if err != nil {
		return "", false
	}
	u, err := url.Parse(norm)
	if err != nil || !sameSite(u.Host, rootURL.Host) {
		return "", false
	}
	if group != nil && !group.Test(u.Path) {
		return "", false
	}
	return norm, true
}

// fetchDoc GETs a page and parses it as HTML, or returns nil.
func (d *Discoverer) fetchDoc(ctx context.Context, pageURL string) *goquery.Document {
	body, err := d.fetch(ctx, pageURL)
	if err != nil {
		zap.L().Debug("page fetch failed", zap.String("url", pageURL), zap.Error(err))
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		zap.L().Debug("page parse failed", zap.String("url", pageURL), zap.Error(err))
		return nil
	}
	return doc
}

// navAnchors extracts hrefs from the navigation chrome of a page: nav,
// header, and footer elements plus anything marked role=navigation.
func navAnchors(doc *goquery.Document, base *url.URL) []string {
	var links []string
	doc.Find("nav a[href], header a[href], footer a[href], [role=navigation] a[href]").Each(func(_ int, sel *goquery.Selection) {
		if href := resolveHref(base, sel); href != "" {
			links = append(links, href)
		}
	})
	return links
}

// allAnchors extracts every anchor href from a page.
func allAnchors(doc *goquery.Document, base *url.URL) []string {
	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		if href := resolveHref(base, sel); href != "" {
			links = append(links, href)
		}
	})
	return links
}

func resolveHref(base *url.URL, sel *goquery.Selection) string {
	href, ok := sel.Attr("href")
	if !ok {
		return ""
	}
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") ||
		strings.HasPrefix(href, "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// crawl walks same-site links breadth-first from the homepage, up to
// CrawlDepth levels and MaxCrawlPages page fetches. The homepage links are
// depth one; the document is already in hand so they cost no fetch.
func (d *Discoverer) crawl(ctx context.Context, set *model.CandidateSet, rootURL *url.URL, group *robotstxt.Group, homeDoc *goquery.Document) {
	type frontierItem struct {
		url   string
		depth int
	}

	crawled := map[string]bool{}
	enqueued := map[string]bool{}
	var frontier []frontierItem

	// A URL already known from the sitemap or nav still gets crawled for its
	// outbound links; only the candidate tag records first provenance.
	enqueue := func(links []string, depth int) {
		for _, link := range links {
			norm, ok := d.eligible(rootURL, group, link)
			if !ok {
				continue
			}
			set.Add(norm, model.SourceRecursive)
			if !enqueued[norm] {
				enqueued[norm] = true
				frontier = append(frontier, frontierItem{url: norm, depth: depth})
			}
		}
	}
	enqueue(allAnchors(homeDoc, rootURL), 1)

	fetches := 0
	for len(frontier) > 0 && fetches < d.cfg.MaxCrawlPages && ctx.Err() == nil {
		item := frontier[0]
		frontier = frontier[1:]
		if item.depth >= d.cfg.CrawlDepth || crawled[item.url] {
			continue
		}
		crawled[item.url] = true
		fetches++

		doc := d.fetchDoc(ctx, item.url)
		if doc == nil {
			continue
		}
		enqueue(allAnchors(doc, rootURL), item.depth+1)
	}
}
