package scout

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomoki/vault-agent/internal/db"
	"github.com/tomoki/vault-agent/internal/fetch"
	"github.com/tomoki/vault-agent/internal/llm"
	"github.com/tomoki/vault-agent/internal/trace"
	"github.com/tomoki/vault-agent/internal/vault"
)

// ArtifactStore is the persistence surface the scout writes proposals and
// reports to
type ArtifactStore interface {
	InsertArtifact(ctx context.Context, input *db.ArtifactInput) (*db.Artifact, error)
	InsertApprovedReport(ctx context.Context, input *db.ArtifactInput) (*db.Artifact, error)
}

// RunStore tracks the run lifecycle and receives step telemetry
type RunStore interface {
	trace.StepSink
	CreateRun(ctx context.Context, kind string, metadata map[string]any) (uuid.UUID, error)
	FinishRun(ctx context.Context, runID uuid.UUID, status string) error
}

// Orchestrator drives the search-refine loop
type Orchestrator struct {
	store    ArtifactStore
	runs     RunStore
	provider SearchProvider
	filter   vault.URLFilter
	source   vault.DocumentSource
	client   llm.Client

	// fetchSummary replaces a thin snippet with page text; injectable so
	// tests never hit the network
	fetchSummary func(ctx context.Context, urlStr string) (string, error)
}

// New creates a scout orchestrator
func New(store ArtifactStore, runs RunStore, provider SearchProvider, filter vault.URLFilter, source vault.DocumentSource, client llm.Client) *Orchestrator {
	return &Orchestrator{
		store:    store,
		runs:     runs,
		provider: provider,
		filter:   filter,
		source:   source,
		client:   client,
		fetchSummary: func(ctx context.Context, urlStr string) (string, error) {
			return fetch.Summary(ctx, urlStr, 300, nil)
		},
	}
}

// Run executes one scout session. The loop terminates for exactly one
// reason; a failed query or evaluation yields zero output for that item and
// the loop proceeds.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Result, error) {
	applyDefaults(&opts)
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	runID, err := o.runs.CreateRun(ctx, db.RunKindWebScout, map[string]any{
		"goal":  opts.Goal,
		"query": opts.Query,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create scout run: %w", err)
	}

	result := &Result{RunID: runID}
	rec := trace.NewRecorder(runID, o.runs)

	var queue []string
	if q := strings.TrimSpace(opts.Query); q != "" {
		queue = append(queue, q)
	}
	var usedQueries []string
	seen := make(map[string]bool)

	for iter := 1; iter <= opts.MaxIterations; iter++ {
		result.Iterations = iter

		if len(queue) == 0 {
			if result.QueriesUsed >= opts.MaxQueries {
				result.Reason = ReasonQueryBudget
				break
			}
			queue = o.deriveQueries(ctx, rec, opts)
			if len(queue) == 0 {
				result.Reason = ReasonNoQueries
				break
			}
		}
		if result.QueriesUsed >= opts.MaxQueries {
			result.Reason = ReasonQueryBudget
			break
		}

		query := queue[0]
		queue = queue[1:]
		result.QueriesUsed++
		usedQueries = append(usedQueries, query)

		if opts.Verbose {
			log.Printf("[SCOUT] iteration %d query %q", iter, query)
		}

		searchKey := fmt.Sprintf("search:%d", iter)
		rec.StepStart(searchKey, trace.ToolEvent("web_search", "google-cse", map[string]any{"query": query}))
		results, err := o.provider.Search(ctx, query, opts.ResultsPerQuery)
		if err != nil {
			rec.StepEnd(ctx, searchKey, nil, err)
			log.Printf("[SCOUT] search failed for %q: %v", query, err)
			continue
		}
		rec.StepEnd(ctx, searchKey, map[string]any{"results": len(results)}, nil)

		fresh := o.dedupe(ctx, opts, results, seen)
		accepted := o.evaluateAll(ctx, rec, opts, fresh)
		result.Proposals = append(result.Proposals, accepted...)

		if len(result.Proposals) >= opts.MinQualityResults {
			result.Reason = ReasonQualityMet
			break
		}

		if len(queue) == 0 && result.QueriesUsed < opts.MaxQueries && iter < opts.MaxIterations {
			queue = o.refineQueries(ctx, rec, opts, usedQueries, result.Proposals)
		}
	}
	if result.Reason == "" {
		result.Reason = ReasonIterationBudget
	}

	persistFailures := o.persist(ctx, rec, runID, opts, result)

	status := db.RunStatusOk
	if persistFailures > 0 {
		status = db.RunStatusPartial
	}
	rec.EvictInFlight(ctx)
	if err := o.runs.FinishRun(ctx, runID, status); err != nil {
		log.Printf("[SCOUT] failed to finish run %s: %v", runID, err)
	}
	return result, nil
}

// dedupe drops URLs already evaluated this run, already known to the vault,
// or outside the domain allow-list
func (o *Orchestrator) dedupe(ctx context.Context, opts Options, results []SearchResult, seen map[string]bool) []SearchResult {
	candidates := make([]SearchResult, 0, len(results))
	urls := make([]string, 0, len(results))
	for _, r := range results {
		if r.URL == "" || seen[r.URL] {
			continue
		}
		seen[r.URL] = true
		if !allowedByDomains(r.URL, opts.AllowedDomains) {
			continue
		}
		candidates = append(candidates, r)
		urls = append(urls, r.URL)
	}
	if len(candidates) == 0 {
		return nil
	}

	freshURLs, err := o.filter.FilterNew(ctx, urls)
	if err != nil {
		// Dedup against the vault is best-effort; a filter outage must not
		// drop the whole batch.
		log.Printf("[SCOUT] vault URL filter failed: %v", err)
		return candidates
	}

	fresh := make(map[string]bool, len(freshURLs))
	for _, u := range freshURLs {
		fresh[u] = true
	}
	out := make([]SearchResult, 0, len(candidates))
	for _, r := range candidates {
		if fresh[r.URL] {
			out = append(out, r)
		}
	}
	return out
}

// persist writes qualifying proposals as proposed artifacts and, in
// unattended mode, an auto-approved report digest. Returns the number of
// failed writes.
func (o *Orchestrator) persist(ctx context.Context, rec *trace.Recorder, runID uuid.UUID, opts Options, result *Result) int {
	failures := 0
	day := db.DayKey(time.Now())

	for _, p := range result.Proposals {
		artifact, err := o.store.InsertArtifact(ctx, &db.ArtifactInput{
			RunID: &runID,
			Agent: db.AgentWebScout,
			Kind:  db.KindWebProposal,
			Day:   day,
			Title: p.Title,
			Content: db.ProposalContent{
				URL:         p.URL,
				Title:       p.Title,
				Snippet:     p.Snippet,
				Score:       p.Score,
				ContentType: p.ContentType,
				Topics:      p.Topics,
			},
			SourceRefs: map[string]any{"goal": opts.Goal},
		})
		if err != nil {
			log.Printf("[SCOUT] failed to persist proposal %s: %v", p.URL, err)
			failures++
			continue
		}
		result.ArtifactIDs = append(result.ArtifactIDs, artifact.ID)
	}

	ev := trace.AgentEvent("persist_proposals", map[string]any{"proposals": len(result.Proposals)})
	ev.Output = map[string]any{"inserted": len(result.ArtifactIDs), "failed": failures}
	rec.Record(ctx, ev)

	if opts.Unattended && len(result.Proposals) > 0 {
		report, err := o.store.InsertApprovedReport(ctx, &db.ArtifactInput{
			RunID: &runID,
			Agent: db.AgentWebScout,
			Kind:  db.KindResearchReport,
			Day:   day,
			Title: "Web scout: " + opts.Goal,
			Content: db.ReportContent{
				Title:        "Web scout: " + opts.Goal,
				Markdown:     o.reportMarkdown(ctx, rec, opts, result.Proposals),
				SourcesCount: len(result.Proposals),
			},
			SourceRefs: map[string]any{"goal": opts.Goal, "reason": result.Reason},
		})
		if err != nil {
			log.Printf("[SCOUT] failed to persist report: %v", err)
			failures++
		} else {
			result.ArtifactIDs = append(result.ArtifactIDs, report.ID)
		}
	}

	return failures
}

// applyDefaults fills zero-valued budgets so callers can set only what they
// care about
func applyDefaults(opts *Options) {
	defaults := DefaultOptions(opts.Goal)
	if opts.MaxIterations == 0 {
		opts.MaxIterations = defaults.MaxIterations
	}
	if opts.MaxQueries == 0 {
		opts.MaxQueries = defaults.MaxQueries
	}
	if opts.MinQualityResults == 0 {
		opts.MinQualityResults = defaults.MinQualityResults
	}
	if opts.MinRelevance == 0 {
		opts.MinRelevance = defaults.MinRelevance
	}
	if opts.ResultsPerQuery == 0 {
		opts.ResultsPerQuery = defaults.ResultsPerQuery
	}
}
