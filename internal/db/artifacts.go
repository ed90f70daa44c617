package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// -----------------------------------------------------------------------------
// Artifact Lifecycle Methods
// -----------------------------------------------------------------------------

const artifactColumns = `id, run_id, agent, kind, day, title, content, source_refs,
	        status, created_at, reviewed_at, read_at`

// InsertArtifact creates a new artifact in the proposed state
func (db *DB) InsertArtifact(ctx context.Context, input *ArtifactInput) (*Artifact, error) {
	contentJSON, err := marshalSanitized(input.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal artifact content: %w", err)
	}
	sourceRefsJSON, err := marshalSanitized(input.SourceRefs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal artifact source refs: %w", err)
	}

	var a Artifact
	err = db.pool.QueryRow(ctx,
		`INSERT INTO artifacts (run_id, agent, kind, day, title, content, source_refs, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+artifactColumns,
		input.RunID, input.Agent, input.Kind, input.Day, input.Title,
		contentJSON, sourceRefsJSON, ArtifactStatusProposed,
	).Scan(&a.ID, &a.RunID, &a.Agent, &a.Kind, &a.Day, &a.Title,
		&contentJSON, &sourceRefsJSON, &a.Status, &a.CreatedAt, &a.ReviewedAt, &a.ReadAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert artifact: %w", err)
	}

	unmarshalInto(contentJSON, &a.Content)
	unmarshalInto(sourceRefsJSON, &a.SourceRefs)
	return &a, nil
}

// ApproveArtifact transitions a proposed artifact to approved and, in the
// same transaction, demotes any other approved artifact sharing the same
// (agent, kind, day) key to superseded. Returns false without error when the
// artifact does not exist or is not proposed.
//
// This is the one mandatory transactional boundary: two concurrent approvals
// for the same key must never both end up approved.
func (db *DB) ApproveArtifact(ctx context.Context, id uuid.UUID) (bool, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var agent, kind, day string
	err = tx.QueryRow(ctx,
		`SELECT agent, kind, day FROM artifacts WHERE id = $1`,
		id,
	).Scan(&agent, &kind, &day)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("failed to load artifact for approval: %w", err)
	}

	// Lock every artifact sharing the key in a consistent order so two
	// concurrent approvals for the same key serialize instead of deadlocking.
	rows, err := tx.Query(ctx,
		`SELECT id, status FROM artifacts
		 WHERE agent = $1 AND kind = $2 AND day = $3
		 ORDER BY id FOR UPDATE`,
		agent, kind, day,
	)
	if err != nil {
		return false, fmt.Errorf("failed to lock artifact key: %w", err)
	}
	targetStatus := ""
	for rows.Next() {
		var rowID uuid.UUID
		var rowStatus string
		if err := rows.Scan(&rowID, &rowStatus); err != nil {
			rows.Close()
			return false, fmt.Errorf("failed to scan locked artifact: %w", err)
		}
		if rowID == id {
			targetStatus = rowStatus
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("failed to lock artifact key: %w", err)
	}
	if targetStatus != ArtifactStatusProposed {
		return false, nil
	}

	_, err = tx.Exec(ctx,
		`UPDATE artifacts SET status = $1, reviewed_at = NOW()
		 WHERE agent = $2 AND kind = $3 AND day = $4 AND status = $5 AND id <> $6`,
		ArtifactStatusSuperseded, agent, kind, day, ArtifactStatusApproved, id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to supersede prior artifacts: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE artifacts SET status = $1, reviewed_at = NOW() WHERE id = $2`,
		ArtifactStatusApproved, id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to approve artifact: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit approval: %w", err)
	}
	return true, nil
}

// RejectArtifact transitions a proposed artifact to rejected. Returns false
// when the artifact does not exist or is not proposed.
func (db *DB) RejectArtifact(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := db.pool.Exec(ctx,
		`UPDATE artifacts SET status = $1, reviewed_at = NOW()
		 WHERE id = $2 AND status = $3`,
		ArtifactStatusRejected, id, ArtifactStatusProposed,
	)
	if err != nil {
		return false, fmt.Errorf("failed to reject artifact: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// MarkArtifactRead sets read_at once. Returns false when already read or not
// found.
func (db *DB) MarkArtifactRead(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := db.pool.Exec(ctx,
		`UPDATE artifacts SET read_at = NOW() WHERE id = $1 AND read_at IS NULL`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark artifact read: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// InsertApprovedReport inserts an artifact directly as approved, superseding
// the prior approved artifact for the same (agent, kind, day) key, in one
// transaction. This bypasses the proposed review stage on purpose: it is the
// path for fully-automated, non-reviewed outputs such as daily reports.
func (db *DB) InsertApprovedReport(ctx context.Context, input *ArtifactInput) (*Artifact, error) {
	contentJSON, err := marshalSanitized(input.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal artifact content: %w", err)
	}
	sourceRefsJSON, err := marshalSanitized(input.SourceRefs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal artifact source refs: %w", err)
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`UPDATE artifacts SET status = $1, reviewed_at = NOW()
		 WHERE agent = $2 AND kind = $3 AND day = $4 AND status = $5`,
		ArtifactStatusSuperseded, input.Agent, input.Kind, input.Day, ArtifactStatusApproved,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to supersede prior artifacts: %w", err)
	}

	var a Artifact
	err = tx.QueryRow(ctx,
		`INSERT INTO artifacts (run_id, agent, kind, day, title, content, source_refs, status, reviewed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		 RETURNING `+artifactColumns,
		input.RunID, input.Agent, input.Kind, input.Day, input.Title,
		contentJSON, sourceRefsJSON, ArtifactStatusApproved,
	).Scan(&a.ID, &a.RunID, &a.Agent, &a.Kind, &a.Day, &a.Title,
		&contentJSON, &sourceRefsJSON, &a.Status, &a.CreatedAt, &a.ReviewedAt, &a.ReadAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert approved artifact: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit approved insert: %w", err)
	}

	unmarshalInto(contentJSON, &a.Content)
	unmarshalInto(sourceRefsJSON, &a.SourceRefs)
	return &a, nil
}

// -----------------------------------------------------------------------------
// Artifact Query Methods
// -----------------------------------------------------------------------------

// GetArtifactByID retrieves an artifact, or nil if it does not exist
func (db *DB) GetArtifactByID(ctx context.Context, id uuid.UUID) (*Artifact, error) {
	var a Artifact
	var contentJSON, sourceRefsJSON []byte
	err := db.pool.QueryRow(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE id = $1`,
		id,
	).Scan(&a.ID, &a.RunID, &a.Agent, &a.Kind, &a.Day, &a.Title,
		&contentJSON, &sourceRefsJSON, &a.Status, &a.CreatedAt, &a.ReviewedAt, &a.ReadAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}
	unmarshalInto(contentJSON, &a.Content)
	unmarshalInto(sourceRefsJSON, &a.SourceRefs)
	return &a, nil
}

// ListArtifactsByDay retrieves artifacts for a day, optionally filtered by
// status. Proposed artifacts for a day form the review inbox; approved ones
// are the day's active set.
func (db *DB) ListArtifactsByDay(ctx context.Context, day, status string) ([]Artifact, error) {
	query := `SELECT ` + artifactColumns + ` FROM artifacts WHERE day = $1`
	args := []any{day}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at ASC`

	return db.queryArtifacts(ctx, query, args...)
}

// ListArtifactsByAgentKind retrieves artifacts for a producer and output
// type, with optional day/status filters
func (db *DB) ListArtifactsByAgentKind(ctx context.Context, agent, kind string, filters ArtifactFilters) ([]Artifact, error) {
	query := `SELECT ` + artifactColumns + ` FROM artifacts WHERE agent = $1 AND kind = $2`
	args := []any{agent, kind}
	argNum := 3

	if filters.Day != "" {
		query += fmt.Sprintf(` AND day = $%d`, argNum)
		args = append(args, filters.Day)
		argNum++
	}
	if filters.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argNum)
		args = append(args, filters.Status)
		argNum++
	}

	query += ` ORDER BY created_at DESC`
	if filters.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argNum)
		args = append(args, filters.Limit)
	}

	return db.queryArtifacts(ctx, query, args...)
}

// CountArtifactsByStatus returns status -> count for a day
func (db *DB) CountArtifactsByStatus(ctx context.Context, day string) (map[string]int, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM artifacts WHERE day = $1 GROUP BY status`,
		day,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count artifacts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, nil
}

func (db *DB) queryArtifacts(ctx context.Context, query string, args ...any) ([]Artifact, error) {
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []Artifact
	for rows.Next() {
		var a Artifact
		var contentJSON, sourceRefsJSON []byte
		if err := rows.Scan(&a.ID, &a.RunID, &a.Agent, &a.Kind, &a.Day, &a.Title,
			&contentJSON, &sourceRefsJSON, &a.Status, &a.CreatedAt,
			&a.ReviewedAt, &a.ReadAt); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		unmarshalInto(contentJSON, &a.Content)
		unmarshalInto(sourceRefsJSON, &a.SourceRefs)
		artifacts = append(artifacts, a)
	}
	return artifacts, nil
}
