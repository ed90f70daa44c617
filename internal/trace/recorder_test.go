package trace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomoki/vault-agent/internal/db"
)

type memorySink struct {
	mu    sync.Mutex
	steps []*db.StepInput
	err   error
	panic bool
}

func (m *memorySink) AppendStep(ctx context.Context, runID uuid.UUID, input *db.StepInput) (*db.RunStep, error) {
	if m.panic {
		panic("sink exploded")
	}
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, input)
	return &db.RunStep{ID: uuid.New(), RunID: runID, StepName: input.StepName}, nil
}

func (m *memorySink) recorded() []*db.StepInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*db.StepInput, len(m.steps))
	copy(out, m.steps)
	return out
}

func TestRecorder_StartEndPair(t *testing.T) {
	sink := &memorySink{}
	r := NewRecorder(uuid.New(), sink)
	ctx := context.Background()

	r.StepStart("search-1", ToolEvent("web_search", "google", map[string]any{"query": "go generics"}))
	r.StepEnd(ctx, "search-1", map[string]any{"results": 5}, nil)

	steps := sink.recorded()
	require.Len(t, steps, 1)
	step := steps[0]
	assert.Equal(t, "web_search", step.StepName)
	assert.Equal(t, "google", step.ToolName)
	assert.Equal(t, db.StepStatusOk, step.Status)
	require.NotNil(t, step.StartedAt)
	require.NotNil(t, step.EndedAt)
	assert.False(t, step.EndedAt.Before(*step.StartedAt))
}

func TestRecorder_EndWithErrorMarksStepError(t *testing.T) {
	sink := &memorySink{}
	r := NewRecorder(uuid.New(), sink)

	r.StepStart("llm-1", LLMEvent("extract_concepts", "gemini-2.0-flash", "prompt", 1200))
	r.StepEnd(context.Background(), "llm-1", nil, errors.New("model timeout"))

	steps := sink.recorded()
	require.Len(t, steps, 1)
	assert.Equal(t, db.StepStatusError, steps[0].Status)
	require.NotNil(t, steps[0].Error)
	require.NotNil(t, steps[0].TokenEstimate)
	assert.Equal(t, 1200, *steps[0].TokenEstimate)
}

func TestRecorder_EndWithoutStartStillRecorded(t *testing.T) {
	sink := &memorySink{}
	r := NewRecorder(uuid.New(), sink)

	r.StepEnd(context.Background(), "orphan-end", "late output", nil)

	steps := sink.recorded()
	require.Len(t, steps, 1)
	assert.Equal(t, "orphan-end", steps[0].StepName)
	assert.Nil(t, steps[0].StartedAt)
	assert.NotNil(t, steps[0].EndedAt)
}

func TestRecorder_RecordSingleShot(t *testing.T) {
	sink := &memorySink{}
	r := NewRecorder(uuid.New(), sink)

	r.Record(context.Background(), FlowEvent("cursor_advanced", map[string]any{"cursor": 3}))

	steps := sink.recorded()
	require.Len(t, steps, 1)
	assert.Equal(t, "cursor_advanced", steps[0].StepName)
	assert.NotNil(t, steps[0].StartedAt)
	assert.NotNil(t, steps[0].EndedAt)
}

func TestRecorder_SinkFailureIsSwallowed(t *testing.T) {
	var logged []string
	sink := &memorySink{err: errors.New("connection refused")}
	r := NewRecorder(uuid.New(), sink)
	r.logf = func(format string, args ...any) {
		logged = append(logged, fmt.Sprintf(format, args...))
	}

	assert.NotPanics(t, func() {
		r.Record(context.Background(), AgentEvent("persist_concept", nil))
	})
	require.Len(t, logged, 1)
	assert.Contains(t, logged[0], "failed to append step")
	assert.Contains(t, logged[0], "persist_concept")
}

func TestRecorder_PanickingSinkIsContained(t *testing.T) {
	var logged []string
	sink := &memorySink{panic: true}
	r := NewRecorder(uuid.New(), sink)
	r.logf = func(format string, args ...any) {
		logged = append(logged, fmt.Sprintf(format, args...))
	}

	assert.NotPanics(t, func() {
		r.StepStart("s1", ToolEvent("fetch_page", "http", nil))
		r.StepEnd(context.Background(), "s1", nil, nil)
	})
	require.Len(t, logged, 1)
	assert.Contains(t, logged[0], "panicked")
}

func TestRecorder_EvictInFlight(t *testing.T) {
	sink := &memorySink{}
	r := NewRecorder(uuid.New(), sink)
	r.logf = func(format string, args ...any) {}

	r.StepStart("stuck-1", ToolEvent("fetch_page", "http", nil))
	r.StepStart("stuck-2", AgentEvent("evaluate_result", nil))
	r.EvictInFlight(context.Background())

	steps := sink.recorded()
	require.Len(t, steps, 2)
	for _, step := range steps {
		assert.Equal(t, db.StepStatusSkipped, step.Status)
		assert.NotNil(t, step.StartedAt)
	}

	// Eviction drains the pending set.
	r.EvictInFlight(context.Background())
	assert.Len(t, sink.recorded(), 2)
}

func TestRecorder_RestartOverwritesPending(t *testing.T) {
	sink := &memorySink{}
	r := NewRecorder(uuid.New(), sink)

	first := time.Now().Add(-time.Minute)
	r.StepStart("retry-1", StepEvent{Kind: StepKindTool, Name: "attempt", StartedAt: &first})
	r.StepStart("retry-1", StepEvent{Kind: StepKindTool, Name: "attempt", RetryCount: 1})
	r.StepEnd(context.Background(), "retry-1", "ok", nil)

	steps := sink.recorded()
	require.Len(t, steps, 1)
	assert.Equal(t, 1, steps[0].RetryCount)
	assert.True(t, steps[0].StartedAt.After(first))
}

func TestRecorder_ConcurrentSteps(t *testing.T) {
	sink := &memorySink{}
	r := NewRecorder(uuid.New(), sink)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("step-%d", i)
			r.StepStart(id, ToolEvent("parallel", "worker", i))
			r.StepEnd(ctx, id, i, nil)
		}(i)
	}
	wg.Wait()

	assert.Len(t, sink.recorded(), 16)
}
