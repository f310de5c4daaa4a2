package research

import (
	"fmt"
	"strings"

	"github.com/AntoineDubuc/theodore/internal/model"
)

// defaultCorpusBudget bounds the aggregation prompt's page text.
const defaultCorpusBudget = 100000

// buildCorpus concatenates extracted pages under URL headers, truncated to
// the character budget. Pages keep their input order, so sitemap-origin
// pages (earliest in the candidate set) survive truncation first. Failed
// pages are skipped and reported back as warnings.
func buildCorpus(pages []model.PageContent, budget int) (string, []string) {
	if budget <= 0 {
		budget = defaultCorpusBudget
	}

	var b strings.Builder
	var warnings []string
	for _, p := range pages {
		if p.Method == model.ExtractFailed {
			warnings = append(warnings, fmt.Sprintf("page failed: %s", p.URL))
			continue
		}

		header := fmt.Sprintf("=== %s ===\n", p.URL)
		remaining := budget - b.Len()
		if remaining <= len(header) {
			warnings = append(warnings, fmt.Sprintf("page truncated from corpus: %s", p.URL))
			continue
		}

		b.WriteString(header)
		text := p.Text
		if len(text) > remaining-len(header) {
			text = text[:remaining-len(header)]
			warnings = append(warnings, fmt.Sprintf("page partially truncated: %s", p.URL))
		}
		b.WriteString(text)
		b.WriteString("\n\n")
	}
	return b.String(), warnings
}
