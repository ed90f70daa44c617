package db

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// RunKind constants identify which flow produced a run
const (
	RunKindDistill  = "distill"
	RunKindCurate   = "curate"
	RunKindWebScout = "web-scout"
)

// RunStatus constants
const (
	RunStatusRunning = "running"
	RunStatusOk      = "ok"
	RunStatusError   = "error"
	RunStatusPartial = "partial"
)

// StepStatus constants
const (
	StepStatusRunning = "running"
	StepStatusOk      = "ok"
	StepStatusError   = "error"
	StepStatusSkipped = "skipped"
)

// ErrRunNotFound is returned when a step append or run finish references a
// run that does not exist. Trace reads use nil results instead.
var ErrRunNotFound = errors.New("run not found")

// Run represents one pipeline execution
type Run struct {
	ID        uuid.UUID      `json:"id"`
	Kind      string         `json:"kind"`
	Status    string         `json:"status"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   *time.Time     `json:"ended_at,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// RunStep is one append-only event inside a run. Steps are immutable once
// written; there is no update or delete path.
type RunStep struct {
	ID            uuid.UUID  `json:"id"`
	RunID         uuid.UUID  `json:"run_id"`
	StepName      string     `json:"step_name"`
	ToolName      *string    `json:"tool_name,omitempty"`
	Status        string     `json:"status"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	Input         any        `json:"input,omitempty"`
	Output        any        `json:"output,omitempty"`
	Error         any        `json:"error,omitempty"`
	TokenEstimate *int       `json:"token_estimate,omitempty"`
	RetryCount    int        `json:"retry_count"`
	CreatedAt     time.Time  `json:"created_at"`
}

// StepInput carries the fields for appending one step. Input, Output, and
// Error may be arbitrary values; they are sanitized before persistence.
type StepInput struct {
	StepName      string
	ToolName      string
	Status        string
	StartedAt     *time.Time
	EndedAt       *time.Time
	Input         any
	Output        any
	Error         any
	TokenEstimate *int
	RetryCount    int
}

// Trace is a run together with its steps ordered by start time
type Trace struct {
	Run   Run       `json:"run"`
	Steps []RunStep `json:"steps"`
}
