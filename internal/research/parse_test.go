package research

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntoineDubuc/theodore/internal/model"
	"github.com/AntoineDubuc/theodore/internal/resilience"
)

func TestCleanJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"fenced json", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced plain", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"prose wrapped", `Here you go: {"a":1} hope that helps`, `{"a":1}`},
		{"array", `The pages are: [{"url":"x"}]`, `[{"url":"x"}]`},
		{"array before object", `[{"a":{"b":1}}]`, `[{"a":{"b":1}}]`},
		{"no json", "no structured data here", "no structured data here"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CleanJSON(tc.in))
		})
	}
}

func TestParseSelection(t *testing.T) {
	allowed := map[string]bool{
		"https://acme.example/about": true,
		"https://acme.example/team":  true,
	}

	urls, err := parseSelection(`[
		{"url": "https://acme.example/about", "reason": "company overview"},
		{"url": "https://acme.example/evil", "reason": "not in list"},
		{"url": "https://acme.example/about", "reason": "duplicate"},
		{"url": "https://acme.example/team", "reason": "leadership"}
	]`, allowed)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://acme.example/about", "https://acme.example/team"}, urls)
}

func TestParseSelectionInvalid(t *testing.T) {
	allowed := map[string]bool{"https://acme.example/about": true}

	_, err := parseSelection("I would pick the about page.", allowed)
	require.Error(t, err)
	assert.Equal(t, resilience.KindInvalidResponse, resilience.KindOf(err))

	// Valid JSON but nothing usable is still invalid.
	_, err = parseSelection(`[{"url": "https://other.example/x"}]`, allowed)
	require.Error(t, err)
	assert.Equal(t, resilience.KindInvalidResponse, resilience.KindOf(err))
}

func TestParseRecord(t *testing.T) {
	record := model.NewCompanyRecord("Acme", "https://acme.example")
	err := parseRecord("```json\n"+`{
		"description": "Industrial robotics",
		"industry": "Manufacturing",
		"products_services": ["arms", "grippers"],
		"leadership": [{"name": "Dana Reeve", "role": "CEO"}, {"role": "no name"}],
		"has_job_listings": true,
		"founding_year": 2011,
		"classification_confidence": 1.7,
		"tech_stack": "not a list",
		"unknown_key": "ignored"
	}`+"\n```", record)
	require.NoError(t, err)

	assert.Equal(t, "Industrial robotics", record.Text(model.FieldDescription))
	assert.Equal(t, []string{"arms", "grippers"}, record.List(model.FieldProductsServices))
	assert.Equal(t, []model.Person{{Name: "Dana Reeve", Role: "CEO"}}, record.Fields[model.FieldLeadership].People)
	assert.True(t, record.Fields[model.FieldHasJobListings].Bool)
	assert.Equal(t, "2011", record.Text(model.FieldFoundingYear), "numeric year coerced to text")
	assert.Equal(t, 1.0, record.Fields[model.FieldClassificationConfidence].Score, "score clamped")

	// Ill-typed and absent fields stay unknown.
	assert.False(t, record.Present(model.FieldTechStack))
	assert.False(t, record.Present(model.FieldLocation))
}

func TestParseRecordUnparsable(t *testing.T) {
	record := model.NewCompanyRecord("Acme", "https://acme.example")
	err := parseRecord("the company makes robots", record)
	require.Error(t, err)
	assert.Equal(t, resilience.KindInvalidResponse, resilience.KindOf(err))
	assert.Empty(t, record.Fields)
}

func TestCapCandidatesPrefersSitemap(t *testing.T) {
	var candidates []model.Candidate
	for i := 0; i < 10; i++ {
		src := model.SourceNav
		if i%2 == 0 {
			src = model.SourceSitemap
		}
		candidates = append(candidates, model.Candidate{URL: string(rune('a' + i)), Source: src})
	}

	capped := capCandidates(candidates, 6)
	require.Len(t, capped, 6)
	for i := 0; i < 5; i++ {
		assert.Equal(t, model.SourceSitemap, capped[i].Source)
	}
	assert.Equal(t, model.SourceNav, capped[5].Source)

	// Under the cap nothing is reordered.
	same := capCandidates(candidates, 100)
	assert.Equal(t, candidates, same)
}

func TestHeuristicSelect(t *testing.T) {
	candidates := []model.Candidate{
		{URL: "https://acme.example/blog/post", Source: model.SourceSitemap},
		{URL: "https://acme.example/about-us", Source: model.SourceSitemap},
		{URL: "https://acme.example/contact", Source: model.SourceNav},
		{URL: "https://acme.example/products/arms", Source: model.SourceNav},
		{URL: "https://acme.example/legal", Source: model.SourceRecursive},
	}

	urls := heuristicSelect(candidates)
	// Pattern priority order: about before contact before product; nothing
	// outside the pattern set, and no homepage injected.
	assert.Equal(t, []string{
		"https://acme.example/about-us",
		"https://acme.example/contact",
		"https://acme.example/products/arms",
	}, urls)
	assert.LessOrEqual(t, len(urls), heuristicMaxURLs)
}

func TestHeuristicSelectTakesOneURLPerPattern(t *testing.T) {
	candidates := []model.Candidate{
		{URL: "https://acme.example/about", Source: model.SourceSitemap},
		{URL: "https://acme.example/about/history", Source: model.SourceSitemap},
		{URL: "https://acme.example/team", Source: model.SourceNav},
	}

	urls := heuristicSelect(candidates)
	assert.Equal(t, []string{
		"https://acme.example/about",
		"https://acme.example/team",
	}, urls)
}

func TestBuildCorpus(t *testing.T) {
	pages := []model.PageContent{
		{URL: "https://a.example/1", Method: model.ExtractPrimary, Text: "first page text", CharCount: 15},
		{URL: "https://a.example/2", Method: model.ExtractFailed},
		{URL: "https://a.example/3", Method: model.ExtractFallback, Text: "third page text", CharCount: 15},
	}

	corpus, warnings := buildCorpus(pages, 10000)
	assert.Contains(t, corpus, "=== https://a.example/1 ===\nfirst page text")
	assert.Contains(t, corpus, "third page text")
	assert.NotContains(t, corpus, "a.example/2 ===")
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "page failed")

	// Earlier pages win the budget.
	small, warnings := buildCorpus(pages, 50)
	assert.Contains(t, small, "first page")
	assert.NotContains(t, small, "third page")
	assert.NotEmpty(t, warnings)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "acmerobotics", slugify("Acme Robotics Inc"))
	assert.Equal(t, "acme", slugify("  ACME Corp"))
	assert.Equal(t, "", slugify("  ... "))
}
