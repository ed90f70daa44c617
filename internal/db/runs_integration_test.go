//go:build integration
// +build integration

package db

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLifecycle_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	runID, err := db.CreateRun(ctx, RunKindDistill, map[string]any{"source": "test"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, runID)

	run, err := db.GetRun(ctx, runID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.Nil(t, run.EndedAt)

	require.NoError(t, db.FinishRun(ctx, runID, RunStatusOk))

	run, err = db.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusOk, run.Status)
	assert.NotNil(t, run.EndedAt)

	// A second finish must not overwrite the terminal status.
	require.NoError(t, db.FinishRun(ctx, runID, RunStatusError))
	run, err = db.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusOk, run.Status)
}

func TestFinishRun_NotFound_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db := setupTestDB(t)
	defer db.Close()

	err := db.FinishRun(context.Background(), uuid.New(), RunStatusOk)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestAppendStep_RunNotFound_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db := setupTestDB(t)
	defer db.Close()

	_, err := db.AppendStep(context.Background(), uuid.New(), &StepInput{
		StepName: "orphan",
		Status:   StepStatusOk,
	})
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestGetRunTrace_OrderedByStartedAt_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	runID, err := db.CreateRun(ctx, RunKindWebScout, nil)
	require.NoError(t, err)

	// Append with out-of-order wall-clock timestamps.
	base := time.Now().UTC().Truncate(time.Second)
	later := base.Add(10 * time.Second)
	earlier := base.Add(-10 * time.Second)

	_, err = db.AppendStep(ctx, runID, &StepInput{StepName: "second", Status: StepStatusOk, StartedAt: &later})
	require.NoError(t, err)
	_, err = db.AppendStep(ctx, runID, &StepInput{StepName: "first", Status: StepStatusOk, StartedAt: &earlier})
	require.NoError(t, err)

	trace, err := db.GetRunTrace(ctx, runID)
	require.NoError(t, err)
	require.NotNil(t, trace)
	require.Len(t, trace.Steps, 2)
	assert.Equal(t, "first", trace.Steps[0].StepName)
	assert.Equal(t, "second", trace.Steps[1].StepName)
}

func TestGetRunTrace_NotFoundIsNil_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db := setupTestDB(t)
	defer db.Close()

	trace, err := db.GetRunTrace(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, trace)
}

func TestAppendStep_SanitizesPayloads_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	runID, err := db.CreateRun(ctx, RunKindDistill, nil)
	require.NoError(t, err)

	type loop struct {
		Name string `json:"name"`
		Self *loop  `json:"self"`
	}
	cyclic := &loop{Name: "n"}
	cyclic.Self = cyclic

	step, err := db.AppendStep(ctx, runID, &StepInput{
		StepName: "cyclic_payload",
		Status:   StepStatusOk,
		Input:    cyclic,
		Output:   "with\x00nul",
	})
	require.NoError(t, err)

	in, ok := step.Input.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "[Circular]", in["self"])
	assert.Equal(t, "withnul", step.Output)
}
