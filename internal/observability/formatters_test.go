package observability

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/tomoki/vault-agent/internal/db"
	"github.com/tomoki/vault-agent/internal/distill"
	"github.com/tomoki/vault-agent/internal/scout"
)

func TestPrintTrace(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	tool := "google-cse"
	trace := &db.Trace{
		Run: db.Run{
			ID:        uuid.New(),
			Kind:      db.RunKindWebScout,
			Status:    db.RunStatusOk,
			StartedAt: time.Now(),
		},
		Steps: []db.RunStep{
			{StepName: "web_search", Status: db.StepStatusOk, ToolName: &tool},
			{StepName: "evaluate_results", Status: db.StepStatusError},
		},
	}

	p.PrintTrace(trace)
	output := buf.String()

	assert.Contains(t, output, "RUN TRACE")
	assert.Contains(t, output, "web-scout")
	assert.Contains(t, output, "web_search")
	assert.Contains(t, output, "google-cse")
	assert.Contains(t, output, "✗")
}

func TestPrintTrace_Nil(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintTrace(nil)

	assert.Empty(t, buf.String())
}

func TestPrintDistillResult(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintDistillResult(&distill.Result{
		RunID:              uuid.New(),
		DocsProcessed:      4,
		ConceptsProposed:   9,
		FlashcardsProposed: 14,
		DocFailures:        1,
	})
	output := buf.String()

	assert.Contains(t, output, "DISTILLATION RESULT")
	assert.Contains(t, output, "4 processed")
	assert.Contains(t, output, "(1 failed)")
	assert.Contains(t, output, "9 proposed")
	assert.Contains(t, output, "14 proposed")
}

func TestPrintScoutResult(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintScoutResult(&scout.Result{
		RunID:       uuid.New(),
		Reason:      scout.ReasonQualityMet,
		Iterations:  2,
		QueriesUsed: 3,
		Proposals: []scout.Proposal{
			{Title: "Spaced repetition study", Score: 0.92},
		},
	})
	output := buf.String()

	assert.Contains(t, output, "WEB SCOUT RESULT")
	assert.Contains(t, output, "quality-met")
	assert.Contains(t, output, "0.92")
	assert.Contains(t, output, "Spaced repetition study")
}

func TestPrintInbox(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	artifacts := []db.Artifact{
		{ID: uuid.New(), Kind: db.KindConcept, Title: "spacing effect"},
	}
	counts := map[string]int{db.ArtifactStatusProposed: 1}

	p.PrintInbox("2026-08-24", artifacts, counts)
	output := buf.String()

	assert.Contains(t, output, "ARTIFACT INBOX")
	assert.Contains(t, output, "2026-08-24")
	assert.Contains(t, output, "spacing effect")
	assert.Contains(t, output, "concept")
}

func TestPrintInbox_Empty(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintInbox("2026-08-24", nil, nil)

	assert.Contains(t, buf.String(), "Inbox empty.")
}
