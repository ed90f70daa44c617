package db

import (
	"time"

	"github.com/google/uuid"
)

// ArtifactStatus constants form the artifact lifecycle: proposed ->
// approved|rejected, approved -> superseded. superseded and rejected are
// terminal.
const (
	ArtifactStatusProposed   = "proposed"
	ArtifactStatusApproved   = "approved"
	ArtifactStatusRejected   = "rejected"
	ArtifactStatusSuperseded = "superseded"
)

// ArtifactAgent constants identify the producer of an artifact
const (
	AgentDistiller = "distiller"
	AgentResearch  = "research"
	AgentWebScout  = "web-scout"
)

// ArtifactKind constants identify the output type
const (
	KindConcept        = "concept"
	KindFlashcard      = "flashcard"
	KindResearchReport = "research-report"
	KindWebProposal    = "web-proposal"
)

// Artifact is a versioned unit of pipeline output proposed for review. For a
// given (agent, kind, day) triple at most one artifact is approved at any
// instant; approving a new one supersedes the previous.
type Artifact struct {
	ID         uuid.UUID  `json:"id"`
	RunID      *uuid.UUID `json:"run_id,omitempty"`
	Agent      string     `json:"agent"`
	Kind       string     `json:"kind"`
	Day        string     `json:"day"`
	Title      string     `json:"title"`
	Content    any        `json:"content,omitempty"`
	SourceRefs any        `json:"source_refs,omitempty"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
}

// ArtifactInput carries the fields for inserting an artifact
type ArtifactInput struct {
	RunID      *uuid.UUID
	Agent      string
	Kind       string
	Day        string
	Title      string
	Content    any
	SourceRefs any
}

// ArtifactFilters holds optional filters for listing artifacts by agent/kind
type ArtifactFilters struct {
	Day    string
	Status string
	Limit  int
}

// ReportContent is the closed content shape for research-report artifacts
type ReportContent struct {
	Title        string `json:"title"`
	Markdown     string `json:"markdown"`
	SourcesCount int    `json:"sources_count"`
}

// ProposalContent is the closed content shape for web-proposal artifacts
type ProposalContent struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Snippet     string   `json:"snippet,omitempty"`
	Score       float64  `json:"score"`
	ContentType string   `json:"content_type,omitempty"`
	Topics      []string `json:"topics,omitempty"`
}

// DayKey formats a timestamp as the calendar-day partition key used by the
// artifact store.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
