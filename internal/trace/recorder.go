// Package trace bridges heterogeneous pipeline events into canonical run
// step records. Producers disagree on field names and on whether timing
// arrives as one event or as a start/end pair; the recorder normalizes both
// shapes and guarantees that a telemetry failure never propagates into the
// pipeline that emitted the event.
package trace

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomoki/vault-agent/internal/db"
)

// StepKind tags the producer shape of an event
type StepKind string

// Step kinds for the known producers
const (
	StepKindAgent StepKind = "agent"
	StepKindTool  StepKind = "tool"
	StepKindLLM   StepKind = "llm"
	StepKindFlow  StepKind = "flow"
)

// StepEvent is the canonical step-shaped event all producers map into
type StepEvent struct {
	Kind          StepKind
	Name          string
	Tool          string
	Status        string
	Input         any
	Output        any
	Err           error
	TokenEstimate *int
	RetryCount    int
	StartedAt     *time.Time
	EndedAt       *time.Time
}

// AgentEvent maps an agent-level action to a canonical event
func AgentEvent(name string, input any) StepEvent {
	return StepEvent{Kind: StepKindAgent, Name: name, Input: input}
}

// ToolEvent maps a tool invocation to a canonical event
func ToolEvent(name, tool string, input any) StepEvent {
	return StepEvent{Kind: StepKindTool, Name: name, Tool: tool, Input: input}
}

// LLMEvent maps a model call to a canonical event. The model name lands in
// the tool column; tokens is an estimate, not an exact count.
func LLMEvent(name, model string, input any, tokens int) StepEvent {
	ev := StepEvent{Kind: StepKindLLM, Name: name, Tool: model, Input: input}
	if tokens > 0 {
		ev.TokenEstimate = &tokens
	}
	return ev
}

// FlowEvent maps a flow-level transition to a canonical event
func FlowEvent(name string, input any) StepEvent {
	return StepEvent{Kind: StepKindFlow, Name: name, Input: input}
}

// StepSink is the narrow persistence contract the recorder writes to.
// *db.DB satisfies it.
type StepSink interface {
	AppendStep(ctx context.Context, runID uuid.UUID, input *db.StepInput) (*db.RunStep, error)
}

type inflight struct {
	event     StepEvent
	startedAt time.Time
}

// Recorder normalizes events for a single run and forwards them to the sink.
// Sink failures are logged and swallowed: telemetry must never abort a
// pipeline. Safe for concurrent use.
type Recorder struct {
	runID uuid.UUID
	sink  StepSink

	mu      sync.Mutex
	pending map[string]inflight
	now     func() time.Time
	logf    func(format string, args ...any)
}

// NewRecorder creates a recorder bound to one run
func NewRecorder(runID uuid.UUID, sink StepSink) *Recorder {
	return &Recorder{
		runID:   runID,
		sink:    sink,
		pending: make(map[string]inflight),
		now:     time.Now,
		logf:    log.Printf,
	}
}

// StepStart registers an in-flight step under a caller-supplied correlation
// id. The matching StepEnd completes the timing pair. Restarting an id
// overwrites the previous entry.
func (r *Recorder) StepStart(correlationID string, ev StepEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	started := r.now()
	if ev.StartedAt != nil {
		started = *ev.StartedAt
	}
	r.pending[correlationID] = inflight{event: ev, startedAt: started}
}

// StepEnd completes an in-flight step and appends it. An end without a
// matching start is still recorded, with only the end timestamp. A non-nil
// stepErr marks the step as an error; the error value itself is persisted in
// sanitized form.
func (r *Recorder) StepEnd(ctx context.Context, correlationID string, output any, stepErr error) {
	r.mu.Lock()
	entry, found := r.pending[correlationID]
	delete(r.pending, correlationID)
	r.mu.Unlock()

	ev := entry.event
	if !found {
		ev = StepEvent{Kind: StepKindFlow, Name: correlationID}
	}
	ev.Output = output
	ev.Err = stepErr

	ended := r.now()
	ev.EndedAt = &ended
	if found {
		ev.StartedAt = &entry.startedAt
	}

	r.append(ctx, ev)
}

// Record appends a single-shot event that carries its own timing (or none)
func (r *Recorder) Record(ctx context.Context, ev StepEvent) {
	if ev.StartedAt == nil && ev.EndedAt == nil {
		now := r.now()
		ev.StartedAt = &now
		ev.EndedAt = &now
	}
	r.append(ctx, ev)
}

// EvictInFlight records any steps still pending as skipped. Called when the
// run finishes so crashes between start and end still leave a trace.
func (r *Recorder) EvictInFlight(ctx context.Context) {
	r.mu.Lock()
	stale := r.pending
	r.pending = make(map[string]inflight)
	r.mu.Unlock()

	for id, entry := range stale {
		ev := entry.event
		ev.Status = db.StepStatusSkipped
		ev.StartedAt = &entry.startedAt
		r.logf("[TRACE] evicting in-flight step %q", id)
		r.append(ctx, ev)
	}
}

// append persists one canonical event. All failure modes, including a
// panicking sink, are contained here.
func (r *Recorder) append(ctx context.Context, ev StepEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logf("[TRACE] step sink panicked for %q: %v", ev.Name, rec)
		}
	}()

	status := ev.Status
	if status == "" {
		if ev.Err != nil {
			status = db.StepStatusError
		} else {
			status = db.StepStatusOk
		}
	}

	var errPayload any
	if ev.Err != nil {
		errPayload = ev.Err
	}

	input := &db.StepInput{
		StepName:      ev.Name,
		ToolName:      ev.Tool,
		Status:        status,
		StartedAt:     ev.StartedAt,
		EndedAt:       ev.EndedAt,
		Input:         ev.Input,
		Output:        ev.Output,
		Error:         errPayload,
		TokenEstimate: ev.TokenEstimate,
		RetryCount:    ev.RetryCount,
	}

	if _, err := r.sink.AppendStep(ctx, r.runID, input); err != nil {
		r.logf("[TRACE] failed to append step %q for run %s: %v", ev.Name, r.runID, err)
	}
}
