// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/tomoki/vault-agent/internal/db"
	"github.com/tomoki/vault-agent/internal/distill"
	"github.com/tomoki/vault-agent/internal/scout"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintTrace outputs a run with its ordered steps
func (p *Printer) PrintTrace(trace *db.Trace) {
	if trace == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run:      %s\n", trace.Run.ID))
	sb.WriteString(fmt.Sprintf("Kind:     %s\n", trace.Run.Kind))
	sb.WriteString(fmt.Sprintf("Status:   %s\n", trace.Run.Status))
	sb.WriteString(fmt.Sprintf("Started:  %s\n", trace.Run.StartedAt.Format("2006-01-02 15:04:05")))
	if trace.Run.EndedAt != nil {
		sb.WriteString(fmt.Sprintf("Ended:    %s\n", trace.Run.EndedAt.Format("2006-01-02 15:04:05")))
	}
	sb.WriteString(fmt.Sprintf("Steps:    %d\n", len(trace.Steps)))

	if len(trace.Steps) > 0 {
		sb.WriteString("\n")
	}
	for i, step := range trace.Steps {
		marker := statusMarker(step.Status)
		sb.WriteString(fmt.Sprintf("%s %-24s %s", marker, step.StepName, step.Status))
		if step.ToolName != nil {
			sb.WriteString(fmt.Sprintf(" [%s]", *step.ToolName))
		}
		sb.WriteString("\n")
		if i >= 19 && len(trace.Steps) > 20 {
			sb.WriteString(fmt.Sprintf("... and %d more steps\n", len(trace.Steps)-20))
			break
		}
	}

	p.printBox("RUN TRACE", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintDistillResult outputs the counters from a distillation run
func (p *Printer) PrintDistillResult(result *distill.Result) {
	if result == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run:        %s\n", result.RunID))
	sb.WriteString(fmt.Sprintf("Documents:  %d processed", result.DocsProcessed))
	if result.DocFailures > 0 {
		sb.WriteString(fmt.Sprintf(" (%d failed)", result.DocFailures))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Concepts:   %d proposed\n", result.ConceptsProposed))
	sb.WriteString(fmt.Sprintf("Flashcards: %d proposed\n", result.FlashcardsProposed))
	sb.WriteString(fmt.Sprintf("Artifacts:  %d", len(result.ArtifactIDs)))

	p.printBox("DISTILLATION RESULT", sb.String())
}

// PrintScoutResult outputs the outcome of a scout session
func (p *Printer) PrintScoutResult(result *scout.Result) {
	if result == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run:        %s\n", result.RunID))
	sb.WriteString(fmt.Sprintf("Stopped:    %s\n", result.Reason))
	sb.WriteString(fmt.Sprintf("Iterations: %d (queries: %d)\n", result.Iterations, result.QueriesUsed))
	sb.WriteString(fmt.Sprintf("Proposals:  %d\n", len(result.Proposals)))

	count := min(len(result.Proposals), maxItemsToShow)
	for i := 0; i < count; i++ {
		prop := result.Proposals[i]
		sb.WriteString(fmt.Sprintf("  %.2f  %s\n", prop.Score, prop.Title))
	}
	if len(result.Proposals) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(result.Proposals)-maxItemsToShow))
	}

	p.printBox("WEB SCOUT RESULT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintInbox outputs the proposed artifacts for a day
func (p *Printer) PrintInbox(day string, artifacts []db.Artifact, counts map[string]int) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Day: %s\n", day))
	if len(counts) > 0 {
		sb.WriteString(fmt.Sprintf("Proposed: %d  Approved: %d  Rejected: %d  Superseded: %d\n",
			counts[db.ArtifactStatusProposed], counts[db.ArtifactStatusApproved],
			counts[db.ArtifactStatusRejected], counts[db.ArtifactStatusSuperseded]))
	}
	sb.WriteString("\n")

	if len(artifacts) == 0 {
		sb.WriteString("Inbox empty.")
	}
	for _, a := range artifacts {
		title := a.Title
		if len(title) > 34 {
			title = title[:31] + "..."
		}
		sb.WriteString(fmt.Sprintf("%s  %-10s %s\n", a.ID.String()[:8], a.Kind, title))
	}

	p.printBox("ARTIFACT INBOX", strings.TrimSuffix(sb.String(), "\n"))
}

// statusMarker picks a one-character marker for a step status
func statusMarker(status string) string {
	switch status {
	case db.StepStatusOk:
		return "✓"
	case db.StepStatusError:
		return "✗"
	case db.StepStatusSkipped:
		return "-"
	default:
		return "•"
	}
}
