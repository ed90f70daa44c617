package db

import (
	"time"

	"github.com/google/uuid"
)

// ConceptType constants
const (
	ConceptTypeDefinition = "definition"
	ConceptTypePrinciple  = "principle"
	ConceptTypeFramework  = "framework"
	ConceptTypeProcedure  = "procedure"
	ConceptTypeFact       = "fact"
)

// FlashcardFormat constants
const (
	FlashcardFormatQA    = "qa"
	FlashcardFormatCloze = "cloze"
)

// Concept is a distilled idea owned by exactly one source document. The row
// is cascade-deleted with its document; the mirrored review artifact only
// holds a weak reference.
type Concept struct {
	ID         uuid.UUID `json:"id"`
	DocumentID uuid.UUID `json:"document_id"`
	Label      string    `json:"label"`
	Type       string    `json:"type"`
	Summary    string    `json:"summary"`
	Evidence   []string  `json:"evidence,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ConceptInput carries the fields for inserting a concept
type ConceptInput struct {
	DocumentID uuid.UUID
	Label      string
	Type       string
	Summary    string
	Evidence   []string
}

// Flashcard is a spaced-repetition card owned by one source document, with
// an optional backreference to the concept it drills.
type Flashcard struct {
	ID         uuid.UUID  `json:"id"`
	DocumentID uuid.UUID  `json:"document_id"`
	ConceptID  *uuid.UUID `json:"concept_id,omitempty"`
	Format     string     `json:"format"`
	Front      string     `json:"front"`
	Back       string     `json:"back"`
	CreatedAt  time.Time  `json:"created_at"`
}

// FlashcardInput carries the fields for inserting a flashcard
type FlashcardInput struct {
	DocumentID uuid.UUID
	ConceptID  *uuid.UUID
	Format     string
	Front      string
	Back       string
}

// ValidConceptType reports whether t is one of the closed concept types
func ValidConceptType(t string) bool {
	switch t {
	case ConceptTypeDefinition, ConceptTypePrinciple, ConceptTypeFramework,
		ConceptTypeProcedure, ConceptTypeFact:
		return true
	}
	return false
}

// ValidFlashcardFormat reports whether f is one of the closed card formats
func ValidFlashcardFormat(f string) bool {
	return f == FlashcardFormatQA || f == FlashcardFormatCloze
}
