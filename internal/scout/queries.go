// Package scout - queries.go derives and refines search queries with the
// model. Both operations are best effort: any failure yields an empty list
// and the loop terminates through its normal budget checks.
package scout

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/tomoki/vault-agent/internal/llm"
	"github.com/tomoki/vault-agent/internal/prompts"
	"github.com/tomoki/vault-agent/internal/trace"
	"github.com/tomoki/vault-agent/internal/vault"
)

type queriesResponse struct {
	Queries []string `json:"queries"`
}

const queriesSchema = `{
	"type": "object",
	"required": ["queries"],
	"properties": {
		"queries": {"type": "array", "items": {"type": "string"}}
	}
}`

type reportResponse struct {
	Title    string `json:"title"`
	Markdown string `json:"markdown"`
}

const reportSchema = `{
	"type": "object",
	"required": ["title", "markdown"],
	"properties": {
		"title": {"type": "string"},
		"markdown": {"type": "string"}
	}
}`

// deriveQueries builds seed queries from the goal, grounded in related vault
// notes when available
func (o *Orchestrator) deriveQueries(ctx context.Context, rec *trace.Recorder, opts Options) []string {
	topic := opts.Goal
	if o.source != nil {
		docs, err := o.lookupContext(ctx, opts)
		if err != nil {
			log.Printf("[SCOUT] context lookup failed: %v", err)
		} else if len(docs) > 0 {
			titles := make([]string, 0, len(docs))
			for _, d := range docs {
				titles = append(titles, d.Title)
			}
			topic = fmt.Sprintf("%s (related notes: %s)", opts.Goal, strings.Join(titles, "; "))
		}
	}

	prompt := prompts.Format(prompts.MustGet("scout.json", "seed-queries"), map[string]string{
		"Topic":      topic,
		"MaxQueries": strconv.Itoa(opts.MaxQueries),
	})

	key := "derive_queries"
	rec.StepStart(key, trace.LLMEvent("derive_queries", o.client.GetModel(llm.TierStandard),
		map[string]any{"topic": topic}, llm.EstimateTokens(prompt)))

	var resp queriesResponse
	if err := llm.InvokeStructured(ctx, o.client, llm.TierStandard, prompt, queriesSchema, &resp); err != nil {
		rec.StepEnd(ctx, key, nil, err)
		return nil
	}

	queries := cleanQueries(resp.Queries, nil, opts.MaxQueries)
	rec.StepEnd(ctx, key, map[string]any{"queries": len(queries)}, nil)
	return queries
}

// refineQueries asks the model for new angles given what has been tried and
// found so far
func (o *Orchestrator) refineQueries(ctx context.Context, rec *trace.Recorder, opts Options, used []string, proposals []Proposal) []string {
	findings := "none yet"
	if len(proposals) > 0 {
		lines := make([]string, 0, len(proposals))
		for _, p := range proposals {
			lines = append(lines, fmt.Sprintf("- %s (%s)", p.Title, p.URL))
		}
		findings = strings.Join(lines, "\n")
	}

	remaining := opts.MaxQueries - len(used)
	if remaining <= 0 {
		return nil
	}

	prompt := prompts.Format(prompts.MustGet("scout.json", "refine-queries"), map[string]string{
		"Topic":       opts.Goal,
		"UsedQueries": strings.Join(used, "\n"),
		"Findings":    findings,
		"MaxQueries":  strconv.Itoa(remaining),
	})

	key := fmt.Sprintf("refine_queries:%d", len(used))
	rec.StepStart(key, trace.LLMEvent("refine_queries", o.client.GetModel(llm.TierAdvanced),
		map[string]any{"used": len(used), "findings": len(proposals)}, llm.EstimateTokens(prompt)))

	var resp queriesResponse
	if err := llm.InvokeStructured(ctx, o.client, llm.TierAdvanced, prompt, queriesSchema, &resp); err != nil {
		rec.StepEnd(ctx, key, nil, err)
		return nil
	}

	queries := cleanQueries(resp.Queries, used, remaining)
	rec.StepEnd(ctx, key, map[string]any{"queries": len(queries)}, nil)
	return queries
}

// reportMarkdown renders the unattended-mode digest. The model writes it;
// a deterministic fallback keeps the report path alive through an outage.
func (o *Orchestrator) reportMarkdown(ctx context.Context, rec *trace.Recorder, opts Options, proposals []Proposal) string {
	lines := make([]string, 0, len(proposals))
	for _, p := range proposals {
		lines = append(lines, fmt.Sprintf("- %s (%s), score %.2f", p.Title, p.URL, p.Score))
	}
	sources := strings.Join(lines, "\n")

	prompt := prompts.Format(prompts.MustGet("scout.json", "synthesize-report"), map[string]string{
		"Topic":   opts.Goal,
		"Sources": sources,
	})

	key := "synthesize_report"
	rec.StepStart(key, trace.LLMEvent("synthesize_report", o.client.GetModel(llm.TierAdvanced),
		map[string]any{"sources": len(proposals)}, llm.EstimateTokens(prompt)))

	var resp reportResponse
	if err := llm.InvokeStructured(ctx, o.client, llm.TierAdvanced, prompt, reportSchema, &resp); err != nil {
		rec.StepEnd(ctx, key, nil, err)
		return fmt.Sprintf("# Web scout: %s\n\n%s\n", opts.Goal, sources)
	}

	rec.StepEnd(ctx, key, map[string]any{"title": resp.Title}, nil)
	return resp.Markdown
}

// lookupContext fetches the vault notes that ground query derivation
func (o *Orchestrator) lookupContext(ctx context.Context, opts Options) ([]vault.Document, error) {
	if opts.DeriveTag != "" {
		return o.source.ByTag(ctx, opts.DeriveTag, 5)
	}
	return o.source.Recent(ctx, 5)
}

// cleanQueries trims, dedupes against used queries, and caps the list
func cleanQueries(queries, used []string, max int) []string {
	usedSet := make(map[string]bool, len(used))
	for _, q := range used {
		usedSet[strings.ToLower(strings.TrimSpace(q))] = true
	}

	out := make([]string, 0, len(queries))
	for _, q := range queries {
		q = strings.TrimSpace(q)
		key := strings.ToLower(q)
		if q == "" || usedSet[key] {
			continue
		}
		usedSet[key] = true
		out = append(out, q)
		if len(out) == max {
			break
		}
	}
	return out
}
