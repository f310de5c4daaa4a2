package discovery

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// maxSitemapDepth bounds recursion through sitemap index files. A sitemap
// index that points at another index is followed once; anything deeper is
// ignored.
const maxSitemapDepth = 2

// maxSitemapBytes caps how much of a sitemap document is read.
const maxSitemapBytes = 10 * 1024 * 1024

type sitemapURLSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

type sitemapIndex struct {
	XMLName  xml.Name `xml:"sitemapindex"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// collectSitemap fetches one sitemap URL and appends its page URLs to out.
// Index files recurse up to maxSitemapDepth with a visited set so cyclic
// indexes terminate. Failures are logged and swallowed; a broken sitemap
// never sinks discovery.
func (d *Discoverer) collectSitemap(ctx context.Context, smURL string, depth int, visited map[string]bool, out *[]string) {
	if depth > maxSitemapDepth {
		return
	}
	norm, err := NormalizeURL(smURL)
	if err != nil || visited[norm] {
		return
	}
	visited[norm] = true

	body, err := d.fetch(ctx, norm)
	if err != nil {
		zap.L().Debug("sitemap fetch failed", zap.String("url", norm), zap.Error(err))
		return
	}

	// A sitemap document is either a urlset or an index; try both shapes.
	var urlset sitemapURLSet
	if err := xml.Unmarshal(body, &urlset); err == nil && len(urlset.URLs) > 0 {
		for _, u := range urlset.URLs {
			loc := strings.TrimSpace(u.Loc)
			if loc != "" {
				*out = append(*out, loc)
			}
		}
		return
	}

	var index sitemapIndex
	if err := xml.Unmarshal(body, &index); err == nil && len(index.Sitemaps) > 0 {
		for _, sm := range index.Sitemaps {
			loc := strings.TrimSpace(sm.Loc)
			if loc == "" {
				continue
			}
			d.collectSitemap(ctx, loc, depth+1, visited, out)
		}
		return
	}

	zap.L().Debug("sitemap document unrecognized", zap.String("url", norm))
}

// fetch GETs a URL and returns its body for 2xx responses.
func (d *Discoverer) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "discovery: create request")
	}
	req.Header.Set("User-Agent", d.cfg.UserAgent)

	resp, err := d.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "discovery: fetch")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck
		return nil, eris.Errorf("discovery: status %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSitemapBytes))
	if err != nil {
		return nil, eris.Wrap(err, "discovery: read body")
	}
	return body, nil
}
