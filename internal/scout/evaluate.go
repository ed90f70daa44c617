// Package scout - evaluate.go scores search results. The deterministic
// heuristic short-circuits the model call when it is unambiguous; otherwise
// the model judges relevance and the heuristic remains the fallback.
package scout

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/tomoki/vault-agent/internal/llm"
	"github.com/tomoki/vault-agent/internal/prompts"
	"github.com/tomoki/vault-agent/internal/trace"
)

// minSnippetChars is the snippet length below which the page itself is
// fetched for a better excerpt
const minSnippetChars = 80

// evalConcurrency bounds the per-result evaluation fan-out
const evalConcurrency = 4

type evalResponse struct {
	Score       float64  `json:"score"`
	ContentType string   `json:"content_type,omitempty"`
	Topics      []string `json:"topics,omitempty"`
	Reason      string   `json:"reason,omitempty"`
}

const evalSchema = `{
	"type": "object",
	"required": ["score"],
	"properties": {
		"score": {"type": "number", "minimum": 0, "maximum": 1},
		"content_type": {"type": "string"},
		"topics": {"type": "array", "items": {"type": "string"}},
		"reason": {"type": "string"}
	}
}`

// evaluateAll scores a batch of results concurrently and returns those
// meeting the relevance floor. Evaluation failures degrade to the heuristic
// score, so no result is lost to a model outage.
func (o *Orchestrator) evaluateAll(ctx context.Context, rec *trace.Recorder, opts Options, results []SearchResult) []Proposal {
	if len(results) == 0 {
		return nil
	}

	evals := make([]Evaluation, len(results))
	enriched := make([]SearchResult, len(results))
	copy(enriched, results)

	g := new(errgroup.Group)
	g.SetLimit(evalConcurrency)
	for i := range enriched {
		i := i
		g.Go(func() error {
			evals[i] = o.evaluateResult(ctx, opts, &enriched[i])
			return nil
		})
	}
	_ = g.Wait()

	heuristicOnly := 0
	var accepted []Proposal
	for i, ev := range evals {
		if ev.Heuristic {
			heuristicOnly++
		}
		if ev.Score >= opts.MinRelevance {
			accepted = append(accepted, Proposal{
				URL:         enriched[i].URL,
				Title:       enriched[i].Title,
				Snippet:     enriched[i].Snippet,
				Score:       ev.Score,
				ContentType: ev.ContentType,
				Topics:      ev.Topics,
			})
		}
	}

	stepEv := trace.FlowEvent("evaluate_results", map[string]any{"candidates": len(results)})
	stepEv.Output = map[string]any{
		"accepted":       len(accepted),
		"heuristic_only": heuristicOnly,
	}
	rec.Record(ctx, stepEv)

	return accepted
}

// evaluateResult scores one result, enriching a thin snippet from the page
// first. The result's snippet may be updated in place.
func (o *Orchestrator) evaluateResult(ctx context.Context, opts Options, r *SearchResult) Evaluation {
	if len(strings.TrimSpace(r.Snippet)) < minSnippetChars && o.fetchSummary != nil {
		if summary, err := o.fetchSummary(ctx, r.URL); err == nil && summary != "" {
			r.Snippet = summary
		}
	}

	heuristic := HeuristicScore(*r, opts.Goal)
	if Unambiguous(heuristic) {
		return Evaluation{Score: heuristic, Heuristic: true}
	}

	prompt := prompts.Format(prompts.MustGet("scout.json", "evaluate-result"), map[string]string{
		"Topic":   opts.Goal,
		"URL":     r.URL,
		"Title":   r.Title,
		"Snippet": r.Snippet,
	})

	var resp evalResponse
	if err := llm.InvokeStructured(ctx, o.client, llm.TierLite, prompt, evalSchema, &resp); err != nil {
		return Evaluation{Score: heuristic, Heuristic: true}
	}

	return Evaluation{
		Score:       resp.Score,
		ContentType: normalizeContentType(resp.ContentType),
		Topics:      resp.Topics,
	}
}

// normalizeContentType downgrades an unknown classification to "other"
// instead of failing the result
func normalizeContentType(ct string) string {
	ct = strings.ToLower(strings.TrimSpace(ct))
	switch ct {
	case "article", "documentation", "paper", "video", "discussion":
		return ct
	}
	return "other"
}
