// Package vault defines the contracts to the personal document vault. The
// vault itself (note editor, sync, capture) is a separate system; flows only
// read documents and check which URLs the vault already knows about.
package vault

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Document is a vault note as seen by the flows
type Document struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
}

// DocumentSource fetches documents for batch processing
type DocumentSource interface {
	// ByIDs returns the documents with the given ids, skipping unknown ids
	ByIDs(ctx context.Context, ids []uuid.UUID) ([]Document, error)
	// ByTag returns documents carrying a normalized tag, newest first
	ByTag(ctx context.Context, tag string, limit int) ([]Document, error)
	// Recent returns the most recently created documents
	Recent(ctx context.Context, limit int) ([]Document, error)
}

// URLFilter answers which of a set of URLs the vault has not seen yet.
// Matching is exact on the URL string.
type URLFilter interface {
	FilterNew(ctx context.Context, urls []string) ([]string, error)
}
