// Package model defines the domain types shared across the crawl and
// analysis pipeline.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Field names a slot in the CompanyRecord. The set is fixed; a record is a
// sparse mapping over it, so an absent field is distinguishable from an
// empty one.
type Field string

const (
	// Identity.
	FieldDescription Field = "description"
	FieldIndustry    Field = "industry"

	// Business model.
	FieldBusinessModel    Field = "business_model"
	FieldValueProposition Field = "value_proposition"
	FieldTargetMarket     Field = "target_market"
	FieldPricingModel     Field = "pricing_model"

	// Offerings.
	FieldProductsServices      Field = "products_services"
	FieldKeyServices           Field = "key_services"
	FieldTechStack             Field = "tech_stack"
	FieldCompetitiveAdvantages Field = "competitive_advantages"

	// People.
	FieldLeadership Field = "leadership"

	// Operational.
	FieldLocation      Field = "location"
	FieldFoundingYear  Field = "founding_year"
	FieldEmployeeRange Field = "employee_range"
	FieldHasJobListings Field = "has_job_listings"

	// Classification confidence.
	FieldClassificationConfidence Field = "classification_confidence"
)

// FieldKind is the declared value type of a Field.
type FieldKind int

const (
	KindText FieldKind = iota
	KindList
	KindPeople
	KindBool
	KindScore
)

// fieldSchema declares the type of every recognized field.
var fieldSchema = map[Field]FieldKind{
	FieldDescription:              KindText,
	FieldIndustry:                 KindText,
	FieldBusinessModel:            KindText,
	FieldValueProposition:         KindText,
	FieldTargetMarket:             KindText,
	FieldPricingModel:             KindText,
	FieldProductsServices:         KindList,
	FieldKeyServices:              KindList,
	FieldTechStack:                KindList,
	FieldCompetitiveAdvantages:    KindList,
	FieldLeadership:               KindPeople,
	FieldLocation:                 KindText,
	FieldFoundingYear:             KindText,
	FieldEmployeeRange:            KindText,
	FieldHasJobListings:           KindBool,
	FieldClassificationConfidence: KindScore,
}

// AllFields returns the recognized fields in a stable order.
func AllFields() []Field {
	return []Field{
		FieldDescription,
		FieldIndustry,
		FieldBusinessModel,
		FieldValueProposition,
		FieldTargetMarket,
		FieldPricingModel,
		FieldProductsServices,
		FieldKeyServices,
		FieldTechStack,
		FieldCompetitiveAdvantages,
		FieldLeadership,
		FieldLocation,
		FieldFoundingYear,
		FieldEmployeeRange,
		FieldHasJobListings,
		FieldClassificationConfidence,
	}
}

// KindOfField returns the declared kind for a field and whether the field is
// recognized.
func KindOfField(f Field) (FieldKind, bool) {
	k, ok := fieldSchema[f]
	return k, ok
}

// Person is a leadership entry.
type Person struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// FieldValue is a typed value for one record field. Exactly the member
// matching the field's declared kind is meaningful.
type FieldValue struct {
	Kind   FieldKind `json:"kind"`
	Text   string    `json:"text,omitempty"`
	List   []string  `json:"list,omitempty"`
	People []Person  `json:"people,omitempty"`
	Bool   bool      `json:"bool,omitempty"`
	Score  float64   `json:"score,omitempty"`
}

// CompanyRecord is the aggregated output of a single analysis. Fields holds
// only the fields the aggregation produced; missing keys mean "unknown".
type CompanyRecord struct {
	ID        string                `json:"id"`
	Name      string                `json:"name"`
	Website   string                `json:"website"`
	Fields    map[Field]FieldValue  `json:"fields"`
	Embedding []float32             `json:"embedding,omitempty"`
	Usage     TokenUsage            `json:"usage"`
	CreatedAt time.Time             `json:"created_at"`
}

// NewCompanyRecord creates an empty record for a company.
func NewCompanyRecord(name, website string) *CompanyRecord {
	return &CompanyRecord{
		Name:      name,
		Website:   website,
		Fields:    make(map[Field]FieldValue),
		CreatedAt: time.Now().UTC(),
	}
}

// Present reports whether a field has a value (absence means unknown).
func (r *CompanyRecord) Present(f Field) bool {
	_, ok := r.Fields[f]
	return ok
}

// Text returns the text value of f, or "" when absent.
func (r *CompanyRecord) Text(f Field) string {
	return r.Fields[f].Text
}

// List returns the list value of f, or nil when absent.
func (r *CompanyRecord) List(f Field) []string {
	return r.Fields[f].List
}

// SetText stores a text value. Empty strings are stored too: an explicitly
// empty field is not the same as an unknown one.
func (r *CompanyRecord) SetText(f Field, v string) {
	r.Fields[f] = FieldValue{Kind: KindText, Text: v}
}

// SetList stores a string-list value.
func (r *CompanyRecord) SetList(f Field, v []string) {
	r.Fields[f] = FieldValue{Kind: KindList, List: v}
}

// SetPeople stores leadership entries.
func (r *CompanyRecord) SetPeople(f Field, v []Person) {
	r.Fields[f] = FieldValue{Kind: KindPeople, People: v}
}

// SetBool stores a boolean value.
func (r *CompanyRecord) SetBool(f Field, v bool) {
	r.Fields[f] = FieldValue{Kind: KindBool, Bool: v}
}

// SetScore stores a confidence score, clamped into [0,1].
func (r *CompanyRecord) SetScore(f Field, v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	r.Fields[f] = FieldValue{Kind: KindScore, Score: v}
}

// EmbeddingText derives the canonical string the embedding is computed over.
// Deterministic for a given record: fields are emitted in AllFields order.
func (r *CompanyRecord) EmbeddingText() string {
	var b strings.Builder
	b.WriteString(r.Name)
	if r.Website != "" {
		b.WriteString(" ")
		b.WriteString(r.Website)
	}
	for _, f := range AllFields() {
		fv, ok := r.Fields[f]
		if !ok {
			continue
		}
		switch fv.Kind {
		case KindText:
			if fv.Text != "" {
				fmt.Fprintf(&b, "\n%s: %s", f, fv.Text)
			}
		case KindList:
			if len(fv.List) > 0 {
				fmt.Fprintf(&b, "\n%s: %s", f, strings.Join(fv.List, ", "))
			}
		case KindPeople:
			for _, p := range fv.People {
				fmt.Fprintf(&b, "\n%s: %s (%s)", f, p.Name, p.Role)
			}
		}
	}
	return b.String()
}

// TokenUsage tracks LLM token consumption and estimated spend.
type TokenUsage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// Add accumulates usage from another measurement.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CostUSD += other.CostUSD
}
