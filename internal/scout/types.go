// Package scout implements the iterative search-refine flow: pick a query,
// search the web, score each result, dedupe against the vault, and either
// stop on quality or refine the query, all under explicit budgets.
package scout

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Termination reasons, mutually exclusive and always reported
const (
	ReasonQualityMet      = "quality-met"
	ReasonIterationBudget = "iteration-budget-exhausted"
	ReasonQueryBudget     = "query-budget-exhausted"
	ReasonNoQueries       = "no-queries-available"
)

// SearchResult is one raw provider hit
type SearchResult struct {
	URL     string
	Title   string
	Snippet string
}

// Evaluation is the scored judgement for one result
type Evaluation struct {
	Score       float64
	ContentType string
	Topics      []string
	Heuristic   bool // scored without a model call
}

// Proposal is a qualifying result accumulated for review
type Proposal struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Snippet     string   `json:"snippet,omitempty"`
	Score       float64  `json:"score"`
	ContentType string   `json:"content_type,omitempty"`
	Topics      []string `json:"topics,omitempty"`
}

// Options configures one scout run
type Options struct {
	Goal              string   `validate:"required,min=3"`
	Query             string   // explicit first query; empty means derive
	DeriveTag         string   // derive context from vault docs with this tag
	MaxIterations     int      `validate:"min=1,max=10"`
	MaxQueries        int      `validate:"min=1,max=20"`
	MinQualityResults int      `validate:"min=1,max=50"`
	MinRelevance      float64  `validate:"min=0,max=1"`
	ResultsPerQuery   int      `validate:"min=1,max=10"`
	AllowedDomains    []string `validate:"dive,hostname"`
	Unattended        bool     // also write an auto-approved report artifact
	Verbose           bool
}

// DefaultOptions returns a run configuration with conservative budgets
func DefaultOptions(goal string) Options {
	return Options{
		Goal:              goal,
		MaxIterations:     3,
		MaxQueries:        5,
		MinQualityResults: 3,
		MinRelevance:      0.6,
		ResultsPerQuery:   5,
	}
}

var validate = validator.New()

// Validate checks budgets and the goal before a run starts
func (o *Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("invalid scout options: %w", err)
	}
	return nil
}

// Result is the aggregate outcome of one scout run. It is well-formed even
// when individual queries or evaluations failed.
type Result struct {
	RunID       uuid.UUID   `json:"run_id"`
	Reason      string      `json:"reason"`
	Iterations  int         `json:"iterations"`
	QueriesUsed int         `json:"queries_used"`
	Proposals   []Proposal  `json:"proposals"`
	ArtifactIDs []uuid.UUID `json:"artifact_ids"`
}
