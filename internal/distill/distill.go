// Package distill implements the batch distillation flow: fetch a bounded
// document batch, extract concepts per document, persist them with mirrored
// review artifacts, then generate and persist flashcards. A failing document
// never aborts the batch.
package distill

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/tomoki/vault-agent/internal/db"
	"github.com/tomoki/vault-agent/internal/llm"
	"github.com/tomoki/vault-agent/internal/trace"
	"github.com/tomoki/vault-agent/internal/vault"
)

// maxContentChars caps the document body sent to the extractor
const maxContentChars = 4000

// Store is the persistence surface the distiller writes to
type Store interface {
	InsertConcept(ctx context.Context, input *db.ConceptInput) (*db.Concept, error)
	InsertFlashcard(ctx context.Context, input *db.FlashcardInput) (*db.Flashcard, error)
	InsertArtifact(ctx context.Context, input *db.ArtifactInput) (*db.Artifact, error)
}

// RunStore tracks the run lifecycle and receives step telemetry
type RunStore interface {
	trace.StepSink
	CreateRun(ctx context.Context, kind string, metadata map[string]any) (uuid.UUID, error)
	FinishRun(ctx context.Context, runID uuid.UUID, status string) error
}

// Options selects the document batch. Exactly one selector is honored, in
// IDs, Tag, Recent priority order.
type Options struct {
	IDs     []uuid.UUID
	Tag     string
	Recent  int
	Verbose bool
}

// Result aggregates the counters for one distillation run
type Result struct {
	RunID              uuid.UUID   `json:"run_id"`
	DocsProcessed      int         `json:"docs_processed"`
	ConceptsProposed   int         `json:"concepts_proposed"`
	FlashcardsProposed int         `json:"flashcards_proposed"`
	ArtifactIDs        []uuid.UUID `json:"artifact_ids"`
	DocFailures        int         `json:"doc_failures"`
}

// Orchestrator drives the distillation state machine
type Orchestrator struct {
	store  Store
	runs   RunStore
	source vault.DocumentSource
	client llm.Client
}

// New creates a distillation orchestrator
func New(store Store, runs RunStore, source vault.DocumentSource, client llm.Client) *Orchestrator {
	return &Orchestrator{
		store:  store,
		runs:   runs,
		source: source,
		client: client,
	}
}

// Run executes one distillation batch. A batch-level fetch failure finishes
// the run as error; per-document failures are recorded and skipped. The
// returned Result is well-formed even when some documents failed.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Result, error) {
	runID, err := o.runs.CreateRun(ctx, db.RunKindDistill, runMetadata(opts))
	if err != nil {
		return nil, fmt.Errorf("failed to create distill run: %w", err)
	}

	result := &Result{RunID: runID}
	rec := trace.NewRecorder(runID, o.runs)

	rec.StepStart("fetch_documents", trace.FlowEvent("fetch_documents", runMetadata(opts)))
	docs, err := o.fetchBatch(ctx, opts)
	if err != nil {
		rec.StepEnd(ctx, "fetch_documents", nil, err)
		o.finish(ctx, rec, runID, db.RunStatusError)
		return result, fmt.Errorf("failed to fetch document batch: %w", err)
	}
	rec.StepEnd(ctx, "fetch_documents", map[string]any{"count": len(docs)}, nil)

	day := db.DayKey(time.Now())

	// Cursor-driven loop: every document is attempted exactly once; a failed
	// document counts as processed with zero output.
	for cursor := 0; cursor < len(docs); cursor++ {
		doc := docs[cursor]
		if opts.Verbose {
			log.Printf("[DISTILL] document %d/%d: %s", cursor+1, len(docs), doc.Title)
		}
		if failed := o.processDocument(ctx, rec, runID, day, doc, result); failed {
			result.DocFailures++
		}
		result.DocsProcessed++
	}

	status := db.RunStatusOk
	if result.DocFailures > 0 {
		status = db.RunStatusPartial
	}
	o.finish(ctx, rec, runID, status)
	return result, nil
}

// fetchBatch resolves the document selection
func (o *Orchestrator) fetchBatch(ctx context.Context, opts Options) ([]vault.Document, error) {
	switch {
	case len(opts.IDs) > 0:
		return o.source.ByIDs(ctx, opts.IDs)
	case opts.Tag != "":
		return o.source.ByTag(ctx, opts.Tag, 20)
	case opts.Recent > 0:
		return o.source.Recent(ctx, opts.Recent)
	default:
		return nil, fmt.Errorf("no document selection: provide ids, a tag, or a recent count")
	}
}

// processDocument runs extract, persist, generate, persist for one document.
// Returns true when the document produced no output because of a failure.
func (o *Orchestrator) processDocument(ctx context.Context, rec *trace.Recorder, runID uuid.UUID, day string, doc vault.Document, result *Result) bool {
	extracted, err := o.extractConcepts(ctx, rec, doc)
	if err != nil {
		log.Printf("[DISTILL] extraction failed for %s: %v", doc.ID, err)
		return true
	}
	if len(extracted) == 0 {
		return false
	}

	persisted, conceptsByLabel := o.persistConcepts(ctx, rec, runID, day, doc, extracted, result)
	if persisted == 0 {
		return true
	}

	cards, err := o.generateFlashcards(ctx, rec, doc, extracted)
	if err != nil {
		log.Printf("[DISTILL] flashcard generation failed for %s: %v", doc.ID, err)
		return false
	}

	o.persistFlashcards(ctx, rec, runID, day, doc, cards, conceptsByLabel, result)
	return false
}

// persistConcepts inserts concept rows and their mirrored proposed artifacts.
// Best effort per concept: one failed insert skips that concept only.
func (o *Orchestrator) persistConcepts(ctx context.Context, rec *trace.Recorder, runID uuid.UUID, day string, doc vault.Document, extracted []extractedConcept, result *Result) (int, map[string]uuid.UUID) {
	conceptsByLabel := make(map[string]uuid.UUID, len(extracted))
	inserted, failed := 0, 0

	for _, ec := range extracted {
		concept, err := o.store.InsertConcept(ctx, &db.ConceptInput{
			DocumentID: doc.ID,
			Label:      ec.Name,
			Type:       normalizeConceptType(ec.Type),
			Summary:    ec.Summary,
			Evidence:   ec.Evidence,
		})
		if err != nil {
			log.Printf("[DISTILL] failed to insert concept %q: %v", ec.Name, err)
			failed++
			continue
		}
		inserted++
		result.ConceptsProposed++
		conceptsByLabel[labelKey(ec.Name)] = concept.ID

		artifact, err := o.store.InsertArtifact(ctx, &db.ArtifactInput{
			RunID:   &runID,
			Agent:   db.AgentDistiller,
			Kind:    db.KindConcept,
			Day:     day,
			Title:   concept.Label,
			Content: concept,
			SourceRefs: map[string]any{
				"document_id": doc.ID,
				"concept_id":  concept.ID,
			},
		})
		if err != nil {
			log.Printf("[DISTILL] failed to mirror concept %q: %v", ec.Name, err)
			continue
		}
		result.ArtifactIDs = append(result.ArtifactIDs, artifact.ID)
	}

	ev := trace.AgentEvent("persist_concepts", map[string]any{"document_id": doc.ID})
	if inserted == 0 && failed > 0 {
		ev.Status = db.StepStatusError
	}
	ev.Output = map[string]any{"inserted": inserted, "failed": failed}
	rec.Record(ctx, ev)

	return inserted, conceptsByLabel
}

// persistFlashcards inserts flashcard rows and their mirrored artifacts,
// resolving concept labels back to persisted concept ids
func (o *Orchestrator) persistFlashcards(ctx context.Context, rec *trace.Recorder, runID uuid.UUID, day string, doc vault.Document, cards []generatedCard, conceptsByLabel map[string]uuid.UUID, result *Result) {
	inserted, failed := 0, 0
	perConcept := make(map[string]int)

	for _, card := range cards {
		key := labelKey(card.Concept)
		// At most two cards per concept; extras from a chatty model are dropped.
		if perConcept[key] >= 2 {
			continue
		}

		var conceptID *uuid.UUID
		if id, ok := conceptsByLabel[key]; ok {
			conceptID = &id
		}

		flashcard, err := o.store.InsertFlashcard(ctx, &db.FlashcardInput{
			DocumentID: doc.ID,
			ConceptID:  conceptID,
			Format:     normalizeCardFormat(card.Format),
			Front:      card.Front,
			Back:       card.Back,
		})
		if err != nil {
			log.Printf("[DISTILL] failed to insert flashcard for %q: %v", card.Concept, err)
			failed++
			continue
		}
		inserted++
		perConcept[key]++
		result.FlashcardsProposed++

		artifact, err := o.store.InsertArtifact(ctx, &db.ArtifactInput{
			RunID:   &runID,
			Agent:   db.AgentDistiller,
			Kind:    db.KindFlashcard,
			Day:     day,
			Title:   card.Front,
			Content: flashcard,
			SourceRefs: map[string]any{
				"document_id": doc.ID,
				"concept_id":  conceptID,
			},
		})
		if err != nil {
			log.Printf("[DISTILL] failed to mirror flashcard: %v", err)
			continue
		}
		result.ArtifactIDs = append(result.ArtifactIDs, artifact.ID)
	}

	ev := trace.AgentEvent("persist_flashcards", map[string]any{"document_id": doc.ID})
	if inserted == 0 && failed > 0 {
		ev.Status = db.StepStatusError
	}
	ev.Output = map[string]any{"inserted": inserted, "failed": failed}
	rec.Record(ctx, ev)
}

// finish evicts stale telemetry and closes the run
func (o *Orchestrator) finish(ctx context.Context, rec *trace.Recorder, runID uuid.UUID, status string) {
	rec.EvictInFlight(ctx)
	if err := o.runs.FinishRun(ctx, runID, status); err != nil {
		log.Printf("[DISTILL] failed to finish run %s: %v", runID, err)
	}
}

func runMetadata(opts Options) map[string]any {
	meta := map[string]any{}
	switch {
	case len(opts.IDs) > 0:
		meta["selection"] = "ids"
		meta["count"] = len(opts.IDs)
	case opts.Tag != "":
		meta["selection"] = "tag"
		meta["tag"] = opts.Tag
	default:
		meta["selection"] = "recent"
		meta["limit"] = opts.Recent
	}
	return meta
}
