package model

import (
	"time"

	"github.com/AntoineDubuc/theodore/internal/resilience"
)

// TaskKind identifies the prompt contract a task carries.
type TaskKind string

const (
	TaskPageSelection   TaskKind = "page_selection"
	TaskAggregation     TaskKind = "aggregation"
	TaskExpansion       TaskKind = "expansion"
	TaskSurfaceAnalysis TaskKind = "surface_analysis"
	TaskEmbedding       TaskKind = "embedding"
)

// LLMTask is one unit of work for the worker pool. Tasks are immutable once
// submitted; the pool never mutates them.
type LLMTask struct {
	ID        string    `json:"task_id"`
	Kind      TaskKind  `json:"kind"`
	Prompt    string    `json:"prompt"`
	System    string    `json:"system,omitempty"`
	MaxTokens int       `json:"max_tokens,omitempty"`
	Deadline  time.Time `json:"deadline"`
}

// LLMResult is the outcome of one task. Exactly one of Content or ErrKind is
// populated: a successful result carries content, a failed one carries its
// classification and message.
type LLMResult struct {
	TaskID    string               `json:"task_id"`
	Success   bool                 `json:"success"`
	Content   string               `json:"content,omitempty"`
	Embedding []float32            `json:"embedding,omitempty"`
	Usage     TokenUsage           `json:"usage"`
	ErrKind   resilience.ErrorKind `json:"error_kind,omitempty"`
	ErrMsg    string               `json:"error_msg,omitempty"`
	Duration  time.Duration        `json:"duration"`
}

// Err reconstructs a kinded error from a failed result, or nil on success.
func (r LLMResult) Err() error {
	if r.Success {
		return nil
	}
	return resilience.Errorf(r.ErrKind, r.ErrMsg)
}
