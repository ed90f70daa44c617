package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Concept Methods
// -----------------------------------------------------------------------------

// InsertConcept creates a concept row for a document
func (db *DB) InsertConcept(ctx context.Context, input *ConceptInput) (*Concept, error) {
	var evidenceJSON []byte
	if len(input.Evidence) > 0 {
		evidenceJSON, _ = json.Marshal(input.Evidence)
	}

	var c Concept
	err := db.pool.QueryRow(ctx,
		`INSERT INTO concepts (document_id, label, type, summary, evidence)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, document_id, label, type, summary, evidence, created_at`,
		input.DocumentID, input.Label, input.Type, input.Summary, evidenceJSON,
	).Scan(&c.ID, &c.DocumentID, &c.Label, &c.Type, &c.Summary, &evidenceJSON, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert concept: %w", err)
	}

	if evidenceJSON != nil {
		_ = json.Unmarshal(evidenceJSON, &c.Evidence)
	}
	return &c, nil
}

// ListConceptsByDocument retrieves all concepts for a document
func (db *DB) ListConceptsByDocument(ctx context.Context, documentID uuid.UUID) ([]Concept, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, document_id, label, type, summary, evidence, created_at
		 FROM concepts
		 WHERE document_id = $1
		 ORDER BY created_at ASC`,
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list concepts: %w", err)
	}
	defer rows.Close()

	var concepts []Concept
	for rows.Next() {
		var c Concept
		var evidenceJSON []byte
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Label, &c.Type, &c.Summary,
			&evidenceJSON, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan concept: %w", err)
		}
		if evidenceJSON != nil {
			_ = json.Unmarshal(evidenceJSON, &c.Evidence)
		}
		concepts = append(concepts, c)
	}
	return concepts, nil
}

// -----------------------------------------------------------------------------
// Flashcard Methods
// -----------------------------------------------------------------------------

// InsertFlashcard creates a flashcard row for a document
func (db *DB) InsertFlashcard(ctx context.Context, input *FlashcardInput) (*Flashcard, error) {
	var f Flashcard
	err := db.pool.QueryRow(ctx,
		`INSERT INTO flashcards (document_id, concept_id, format, front, back)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, document_id, concept_id, format, front, back, created_at`,
		input.DocumentID, input.ConceptID, input.Format, input.Front, input.Back,
	).Scan(&f.ID, &f.DocumentID, &f.ConceptID, &f.Format, &f.Front, &f.Back, &f.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert flashcard: %w", err)
	}
	return &f, nil
}

// ListFlashcardsByDocument retrieves all flashcards for a document
func (db *DB) ListFlashcardsByDocument(ctx context.Context, documentID uuid.UUID) ([]Flashcard, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, document_id, concept_id, format, front, back, created_at
		 FROM flashcards
		 WHERE document_id = $1
		 ORDER BY created_at ASC`,
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list flashcards: %w", err)
	}
	defer rows.Close()

	var cards []Flashcard
	for rows.Next() {
		var f Flashcard
		if err := rows.Scan(&f.ID, &f.DocumentID, &f.ConceptID, &f.Format,
			&f.Front, &f.Back, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan flashcard: %w", err)
		}
		cards = append(cards, f)
	}
	return cards, nil
}
