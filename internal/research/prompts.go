package research

import (
	"fmt"
	"strings"

	"github.com/AntoineDubuc/theodore/internal/model"
)

const (
	// selectionCap bounds how many candidate URLs the selection prompt
	// lists. Sitemap-sourced entries survive truncation first.
	selectionCap = 300

	selectionSystem = `You are a research assistant choosing which pages of a company website to read. Respond with JSON only, no prose.`

	aggregationSystem = `You are a company intelligence analyst. Extract structured facts from website text. Respond with JSON only, no prose. Omit any field the text does not support; never guess.`
)

// buildSelectionPrompt lists the candidate URLs and asks for the subset most
// likely to answer the target fields. Candidates beyond the cap are dropped,
// sitemap entries first in, last out.
func buildSelectionPrompt(companyName string, candidates []model.Candidate) string {
	capped := capCandidates(candidates, selectionCap)

	var b strings.Builder
	fmt.Fprintf(&b, "Company: %s\n\n", companyName)
	b.WriteString("Candidate pages:\n")
	for _, c := range capped {
		fmt.Fprintf(&b, "- %s (%s)\n", c.URL, c.Source)
	}
	b.WriteString("\nTarget fields: ")
	for i, f := range model.AllFields() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(string(f))
	}
	b.WriteString("\n\nSelect up to 15 URLs from the list above that best cover the target fields. ")
	b.WriteString(`Reply with a JSON array: [{"url": "...", "reason": "..."}]. Use only URLs from the list.`)
	return b.String()
}

// capCandidates truncates to max entries, preferring sitemap-sourced URLs
// and preserving relative order within each group.
func capCandidates(candidates []model.Candidate, max int) []model.Candidate {
	if len(candidates) <= max {
		return candidates
	}
	out := make([]model.Candidate, 0, max)
	for _, c := range candidates {
		if c.Source == model.SourceSitemap {
			out = append(out, c)
			if len(out) == max {
				return out
			}
		}
	}
	for _, c := range candidates {
		if c.Source != model.SourceSitemap {
			out = append(out, c)
			if len(out) == max {
				break
			}
		}
	}
	return out
}

// buildAggregationPrompt carries the page corpus and the field schema the
// model must fill.
func buildAggregationPrompt(companyName, website, corpus string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Company: %s\nWebsite: %s\n\n", companyName, website)
	b.WriteString("Below is text extracted from the company's website. ")
	b.WriteString("Produce a single JSON object with any of these keys the text supports:\n\n")
	b.WriteString(`{
  "description": string,
  "industry": string,
  "business_model": string,
  "value_proposition": string,
  "target_market": string,
  "pricing_model": string,
  "products_services": [string],
  "key_services": [string],
  "tech_stack": [string],
  "competitive_advantages": [string],
  "leadership": [{"name": string, "role": string}],
  "location": string,
  "founding_year": string,
  "employee_range": string,
  "has_job_listings": boolean,
  "classification_confidence": number between 0 and 1
}`)
	b.WriteString("\n\nOmit keys you cannot support from the text. JSON object only.\n\n")
	b.WriteString("=== WEBSITE TEXT ===\n")
	b.WriteString(corpus)
	return b.String()
}
