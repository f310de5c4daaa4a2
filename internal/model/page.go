package model

import "time"

// URLSource tags where a candidate URL was discovered.
type URLSource string

const (
	SourceSitemap   URLSource = "sitemap"
	SourceNav       URLSource = "nav"
	SourceRecursive URLSource = "recursive"
)

// MaxCandidates caps the size of a CandidateSet.
const MaxCandidates = 1000

// Candidate is one discovered URL with its source tag.
type Candidate struct {
	URL    string    `json:"url"`
	Source URLSource `json:"source"`
}

// CandidateSet is an ordered, deduplicated sequence of candidate URLs for
// one site. Insertion order is preserved; duplicates keep their first
// occurrence. The set refuses entries beyond MaxCandidates.
type CandidateSet struct {
	entries []Candidate
	seen    map[string]bool
}

// NewCandidateSet creates an empty CandidateSet.
func NewCandidateSet() *CandidateSet {
	return &CandidateSet{seen: make(map[string]bool)}
}

// Add appends a candidate. Returns false when the URL is already present or
// the set is full. The URL is expected to be normalized by the caller;
// equality is on the string form.
func (s *CandidateSet) Add(url string, source URLSource) bool {
	if url == "" || s.seen[url] {
		return false
	}
	if len(s.entries) >= MaxCandidates {
		return false
	}
	s.seen[url] = true
	s.entries = append(s.entries, Candidate{URL: url, Source: source})
	return true
}

// Len returns the number of candidates.
func (s *CandidateSet) Len() int {
	return len(s.entries)
}

// Entries returns the candidates in insertion order.
func (s *CandidateSet) Entries() []Candidate {
	return s.entries
}

// URLs returns just the URLs in insertion order.
func (s *CandidateSet) URLs() []string {
	urls := make([]string, len(s.entries))
	for i, e := range s.entries {
		urls[i] = e.URL
	}
	return urls
}

// ExtractionMethod tags how a page's text was obtained.
type ExtractionMethod string

const (
	ExtractPrimary  ExtractionMethod = "primary"
	ExtractFallback ExtractionMethod = "fallback"
	ExtractFailed   ExtractionMethod = "failed"
)

// PageContent is the result of fetching and extracting one URL.
// Invariant: Method == ExtractFailed exactly when CharCount == 0.
type PageContent struct {
	URL        string           `json:"url"`
	FetchedAt  time.Time        `json:"fetched_at"`
	HTTPStatus int              `json:"http_status"`
	Method     ExtractionMethod `json:"extraction_method"`
	Text       string           `json:"text"`
	CharCount  int              `json:"char_count"`
	RetryCount int              `json:"retry_count"`
}
