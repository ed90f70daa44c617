// Package distill - extract.go holds the LLM glue: prompts, output schemas,
// and the structured calls for concept extraction and flashcard generation.
package distill

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/tomoki/vault-agent/internal/db"
	"github.com/tomoki/vault-agent/internal/llm"
	"github.com/tomoki/vault-agent/internal/prompts"
	"github.com/tomoki/vault-agent/internal/trace"
	"github.com/tomoki/vault-agent/internal/vault"
)

// extractedConcept mirrors the extraction prompt's output shape
type extractedConcept struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Summary  string   `json:"summary"`
	Evidence []string `json:"evidence,omitempty"`
}

type extractionResponse struct {
	Concepts []extractedConcept `json:"concepts"`
}

// generatedCard mirrors the flashcard prompt's output shape
type generatedCard struct {
	Concept string `json:"concept"`
	Format  string `json:"format"`
	Front   string `json:"front"`
	Back    string `json:"back"`
}

type cardResponse struct {
	Flashcards []generatedCard `json:"flashcards"`
}

const extractionSchema = `{
	"type": "object",
	"required": ["concepts"],
	"properties": {
		"concepts": {
			"type": "array",
			"minItems": 1,
			"maxItems": 5,
			"items": {
				"type": "object",
				"required": ["name", "type", "summary"],
				"properties": {
					"name": {"type": "string", "minLength": 1},
					"type": {"type": "string"},
					"summary": {"type": "string", "minLength": 1},
					"evidence": {"type": "array", "items": {"type": "string"}}
				}
			}
		}
	}
}`

const cardSchema = `{
	"type": "object",
	"required": ["flashcards"],
	"properties": {
		"flashcards": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["concept", "format", "front", "back"],
				"properties": {
					"concept": {"type": "string"},
					"format": {"type": "string"},
					"front": {"type": "string", "minLength": 1},
					"back": {"type": "string", "minLength": 1}
				}
			}
		}
	}
}`

// extractConcepts asks the model for 2-5 concepts from a truncated document
// body. The step is recorded whether the call succeeds or fails.
func (o *Orchestrator) extractConcepts(ctx context.Context, rec *trace.Recorder, doc vault.Document) ([]extractedConcept, error) {
	prompt := prompts.Format(prompts.MustGet("distill.json", "extract-concepts"), map[string]string{
		"Title":   doc.Title,
		"Content": truncate(doc.Content, maxContentChars),
	})

	key := "extract_concepts:" + doc.ID.String()
	rec.StepStart(key, trace.LLMEvent("extract_concepts", o.client.GetModel(llm.TierStandard),
		map[string]any{"document_id": doc.ID, "title": doc.Title}, llm.EstimateTokens(prompt)))

	var resp extractionResponse
	err := llm.InvokeStructured(ctx, o.client, llm.TierStandard, prompt, extractionSchema, &resp)
	if err != nil {
		rec.StepEnd(ctx, key, nil, err)
		return nil, err
	}

	rec.StepEnd(ctx, key, map[string]any{"concepts": len(resp.Concepts)}, nil)
	return resp.Concepts, nil
}

// generateFlashcards asks the model for 1-2 cards per extracted concept
func (o *Orchestrator) generateFlashcards(ctx context.Context, rec *trace.Recorder, doc vault.Document, concepts []extractedConcept) ([]generatedCard, error) {
	conceptsJSON, err := json.Marshal(concepts)
	if err != nil {
		return nil, err
	}

	prompt := prompts.Format(prompts.MustGet("distill.json", "generate-flashcards"), map[string]string{
		"Concepts": string(conceptsJSON),
	})

	key := "generate_flashcards:" + doc.ID.String()
	rec.StepStart(key, trace.LLMEvent("generate_flashcards", o.client.GetModel(llm.TierStandard),
		map[string]any{"document_id": doc.ID, "concepts": len(concepts)}, llm.EstimateTokens(prompt)))

	var resp cardResponse
	err = llm.InvokeStructured(ctx, o.client, llm.TierStandard, prompt, cardSchema, &resp)
	if err != nil {
		rec.StepEnd(ctx, key, nil, err)
		return nil, err
	}

	rec.StepEnd(ctx, key, map[string]any{"flashcards": len(resp.Flashcards)}, nil)
	return resp.Flashcards, nil
}

// normalizeConceptType downgrades an unknown type to fact instead of failing
// the concept
func normalizeConceptType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if db.ValidConceptType(t) {
		return t
	}
	return db.ConceptTypeFact
}

// normalizeCardFormat downgrades an unknown format to qa
func normalizeCardFormat(f string) string {
	f = strings.ToLower(strings.TrimSpace(f))
	if db.ValidFlashcardFormat(f) {
		return f
	}
	return db.FlashcardFormatQA
}

// labelKey canonicalizes a concept label for lookup
func labelKey(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// truncate hard-caps a document body before prompting
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
