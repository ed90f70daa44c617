package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tomoki/vault-agent/internal/sanitize"
)

// -----------------------------------------------------------------------------
// Run Methods
// -----------------------------------------------------------------------------

// CreateRun inserts a new run with status running and returns its ID
func (db *DB) CreateRun(ctx context.Context, kind string, metadata map[string]any) (uuid.UUID, error) {
	var metadataJSON []byte
	if metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(sanitize.Sanitize(metadata))
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to marshal run metadata: %w", err)
		}
	}

	var id uuid.UUID
	err := db.pool.QueryRow(ctx,
		`INSERT INTO runs (kind, status, started_at, metadata)
		 VALUES ($1, $2, NOW(), $3)
		 RETURNING id`,
		kind, RunStatusRunning, metadataJSON,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create run: %w", err)
	}
	return id, nil
}

// FinishRun sets the terminal status and ended_at for a run. Returns
// ErrRunNotFound if the run does not exist. A run that is already terminal is
// left untouched: a run transitions exactly once.
func (db *DB) FinishRun(ctx context.Context, runID uuid.UUID, status string) error {
	result, err := db.pool.Exec(ctx,
		`UPDATE runs SET status = $1, ended_at = NOW()
		 WHERE id = $2 AND ended_at IS NULL`,
		status, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := db.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM runs WHERE id = $1)`, runID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check run existence: %w", err)
	}
	if !exists {
		return ErrRunNotFound
	}
	return nil
}

// GetRun retrieves a run by ID, or nil if it does not exist
func (db *DB) GetRun(ctx context.Context, runID uuid.UUID) (*Run, error) {
	var run Run
	var metadataJSON []byte
	err := db.pool.QueryRow(ctx,
		`SELECT id, kind, status, started_at, ended_at, metadata
		 FROM runs WHERE id = $1`,
		runID,
	).Scan(&run.ID, &run.Kind, &run.Status, &run.StartedAt, &run.EndedAt, &metadataJSON)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if metadataJSON != nil {
		_ = json.Unmarshal(metadataJSON, &run.Metadata)
	}
	return &run, nil
}

// ListRuns retrieves recent runs, optionally filtered by kind
func (db *DB) ListRuns(ctx context.Context, kind string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, kind, status, started_at, ended_at, metadata FROM runs`
	args := []any{}
	if kind != "" {
		query += ` WHERE kind = $1`
		args = append(args, kind)
	}
	query += fmt.Sprintf(` ORDER BY started_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var metadataJSON []byte
		if err := rows.Scan(&run.ID, &run.Kind, &run.Status, &run.StartedAt,
			&run.EndedAt, &metadataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if metadataJSON != nil {
			_ = json.Unmarshal(metadataJSON, &run.Metadata)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// -----------------------------------------------------------------------------
// Run Step Methods
// -----------------------------------------------------------------------------

// AppendStep sanitizes the step payloads and inserts the step row. It does
// not touch the parent run. Returns ErrRunNotFound when the run is absent.
func (db *DB) AppendStep(ctx context.Context, runID uuid.UUID, input *StepInput) (*RunStep, error) {
	var exists bool
	if err := db.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM runs WHERE id = $1)`, runID,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check run existence: %w", err)
	}
	if !exists {
		return nil, ErrRunNotFound
	}

	inputJSON, err := marshalSanitized(input.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal step input: %w", err)
	}
	outputJSON, err := marshalSanitized(input.Output)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal step output: %w", err)
	}
	errorJSON, err := marshalSanitized(input.Error)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal step error: %w", err)
	}

	var step RunStep
	err = db.pool.QueryRow(ctx,
		`INSERT INTO run_steps (run_id, step_name, tool_name, status, started_at, ended_at,
		                        input, output, error, token_estimate, retry_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id, run_id, step_name, tool_name, status, started_at, ended_at,
		           input, output, error, token_estimate, retry_count, created_at`,
		runID, input.StepName, nullIfEmpty(input.ToolName), input.Status,
		input.StartedAt, input.EndedAt, inputJSON, outputJSON, errorJSON,
		input.TokenEstimate, input.RetryCount,
	).Scan(&step.ID, &step.RunID, &step.StepName, &step.ToolName, &step.Status,
		&step.StartedAt, &step.EndedAt, &inputJSON, &outputJSON, &errorJSON,
		&step.TokenEstimate, &step.RetryCount, &step.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to append step: %w", err)
	}

	unmarshalInto(inputJSON, &step.Input)
	unmarshalInto(outputJSON, &step.Output)
	unmarshalInto(errorJSON, &step.Error)

	return &step, nil
}

// GetRunTrace returns the run and all its steps ordered by start time, then
// insertion order. Returns nil (not an error) when the run does not exist so
// callers can distinguish "not found" from "no steps yet".
func (db *DB) GetRunTrace(ctx context.Context, runID uuid.UUID) (*Trace, error) {
	run, err := db.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, nil
	}

	rows, err := db.pool.Query(ctx,
		`SELECT id, run_id, step_name, tool_name, status, started_at, ended_at,
		        input, output, error, token_estimate, retry_count, created_at
		 FROM run_steps
		 WHERE run_id = $1
		 ORDER BY started_at ASC NULLS LAST, created_at ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get run steps: %w", err)
	}
	defer rows.Close()

	trace := &Trace{Run: *run}
	for rows.Next() {
		var step RunStep
		var inputJSON, outputJSON, errorJSON []byte
		if err := rows.Scan(&step.ID, &step.RunID, &step.StepName, &step.ToolName,
			&step.Status, &step.StartedAt, &step.EndedAt, &inputJSON, &outputJSON,
			&errorJSON, &step.TokenEstimate, &step.RetryCount, &step.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run step: %w", err)
		}
		unmarshalInto(inputJSON, &step.Input)
		unmarshalInto(outputJSON, &step.Output)
		unmarshalInto(errorJSON, &step.Error)
		trace.Steps = append(trace.Steps, step)
	}
	return trace, nil
}

// marshalSanitized runs a value through the sanitizer and marshals the
// resulting tree. nil values stay nil so jsonb columns store NULL.
func marshalSanitized(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	clean := sanitize.Sanitize(v)
	if clean == nil {
		return nil, nil
	}
	return json.Marshal(clean)
}

func unmarshalInto(data []byte, dst *any) {
	if data != nil {
		_ = json.Unmarshal(data, dst)
	}
}
