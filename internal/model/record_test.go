package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAbsentVsEmpty(t *testing.T) {
	r := NewCompanyRecord("Acme Robotics", "https://acme.example")

	assert.False(t, r.Present(FieldDescription))
	assert.Equal(t, "", r.Text(FieldDescription))

	// An explicitly empty text field is present, an untouched one is not.
	r.SetText(FieldDescription, "")
	assert.True(t, r.Present(FieldDescription))
	assert.False(t, r.Present(FieldIndustry))
}

func TestRecordSetScoreClamps(t *testing.T) {
	r := NewCompanyRecord("Acme", "")

	r.SetScore(FieldClassificationConfidence, 1.7)
	assert.Equal(t, 1.0, r.Fields[FieldClassificationConfidence].Score)

	r.SetScore(FieldClassificationConfidence, -0.2)
	assert.Equal(t, 0.0, r.Fields[FieldClassificationConfidence].Score)

	r.SetScore(FieldClassificationConfidence, 0.42)
	assert.Equal(t, 0.42, r.Fields[FieldClassificationConfidence].Score)
}

func TestEmbeddingTextDeterministic(t *testing.T) {
	build := func() *CompanyRecord {
		r := NewCompanyRecord("Acme Robotics", "https://acme.example")
		r.SetText(FieldIndustry, "robotics")
		r.SetText(FieldDescription, "Builds warehouse robots.")
		r.SetList(FieldProductsServices, []string{"arms", "grippers"})
		r.SetPeople(FieldLeadership, []Person{{Name: "Dana Reeve", Role: "CEO"}})
		return r
	}

	a := build().EmbeddingText()
	b := build().EmbeddingText()
	require.Equal(t, a, b)

	// Fields come out in schema order regardless of set order.
	assert.Contains(t, a, "description: Builds warehouse robots.")
	assert.Contains(t, a, "products_services: arms, grippers")
	assert.Contains(t, a, "leadership: Dana Reeve (CEO)")
	assert.Less(t,
		strings.Index(a, "description:"),
		strings.Index(a, "industry:"),
	)
}

func TestEmbeddingTextSkipsEmpty(t *testing.T) {
	r := NewCompanyRecord("Acme", "")
	r.SetText(FieldIndustry, "")
	r.SetList(FieldTechStack, nil)

	assert.Equal(t, "Acme", r.EmbeddingText())
}

func TestFieldSchemaCoversAllFields(t *testing.T) {
	for _, f := range AllFields() {
		_, ok := KindOfField(f)
		assert.True(t, ok, "field %s missing from schema", f)
	}
	_, ok := KindOfField(Field("made_up"))
	assert.False(t, ok)
}

func TestTokenUsageAdd(t *testing.T) {
	u := TokenUsage{InputTokens: 100, OutputTokens: 20, CostUSD: 0.01}
	u.Add(TokenUsage{InputTokens: 50, OutputTokens: 5, CostUSD: 0.002})

	assert.Equal(t, 150, u.InputTokens)
	assert.Equal(t, 25, u.OutputTokens)
	assert.InDelta(t, 0.012, u.CostUSD, 1e-9)
}
