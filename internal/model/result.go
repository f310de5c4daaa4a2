package model

import (
	"time"

	"github.com/AntoineDubuc/theodore/internal/resilience"
)

// Outcome classifies an analysis result for a single company.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial_success"
	OutcomeFailure Outcome = "failure"
)

// AnalysisResult is the per-company return of the orchestrator. Record is
// set for Success and PartialSuccess; Warnings enumerates the pages or
// fields that could not be obtained on a partial result.
type AnalysisResult struct {
	Outcome  Outcome              `json:"outcome"`
	Record   *CompanyRecord       `json:"record,omitempty"`
	Warnings []string             `json:"warnings,omitempty"`
	ErrKind  resilience.ErrorKind `json:"error_kind,omitempty"`
	Message  string               `json:"message,omitempty"`
	Duration time.Duration        `json:"duration"`
	Usage    TokenUsage           `json:"usage"`
}

// Failed reports whether no record was produced.
func (r *AnalysisResult) Failed() bool {
	return r.Outcome == OutcomeFailure
}

// SimilarSource tags where a similarity hit came from.
type SimilarSource string

const (
	SimilarFromVector SimilarSource = "vector"
	SimilarFromLLM    SimilarSource = "llm"
)

// SimilarCompany is one entry returned by the similarity engine.
type SimilarCompany struct {
	Name         string        `json:"name"`
	Website      string        `json:"website,omitempty"`
	Score        float64       `json:"similarity_score"`
	Relationship string        `json:"relationship_kind"`
	Description  string        `json:"description,omitempty"`
	Source       SimilarSource `json:"source"`
	Researched   bool          `json:"researched"`
}
