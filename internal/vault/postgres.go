package vault

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresVault reads documents and known links from the vault's own tables.
// The flows never write to these tables.
type PostgresVault struct {
	pool *pgxpool.Pool
}

// NewPostgresVault wraps an existing pool
func NewPostgresVault(pool *pgxpool.Pool) *PostgresVault {
	return &PostgresVault{pool: pool}
}

const documentColumns = "id, title, content, COALESCE(tags, '{}'), created_at"

// ByIDs returns the documents with the given ids, skipping unknown ids
func (v *PostgresVault) ByIDs(ctx context.Context, ids []uuid.UUID) ([]Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT %s FROM documents
		WHERE id = ANY($1)
		ORDER BY created_at DESC`, documentColumns)

	rows, err := v.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents by ids: %w", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

// ByTag returns documents carrying a normalized tag, newest first
func (v *PostgresVault) ByTag(ctx context.Context, tag string, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 20
	}

	query := fmt.Sprintf(`
		SELECT %s FROM documents
		WHERE $1 = ANY(tags)
		ORDER BY created_at DESC
		LIMIT $2`, documentColumns)

	rows, err := v.pool.Query(ctx, query, tag, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents by tag: %w", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

// Recent returns the most recently created documents
func (v *PostgresVault) Recent(ctx context.Context, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 20
	}

	query := fmt.Sprintf(`
		SELECT %s FROM documents
		ORDER BY created_at DESC
		LIMIT $1`, documentColumns)

	rows, err := v.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent documents: %w", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

// FilterNew returns the subset of urls the vault has no link record for,
// preserving input order
func (v *PostgresVault) FilterNew(ctx context.Context, urls []string) ([]string, error) {
	if len(urls) == 0 {
		return nil, nil
	}

	rows, err := v.pool.Query(ctx, `SELECT url FROM links WHERE url = ANY($1)`, urls)
	if err != nil {
		return nil, fmt.Errorf("failed to query known links: %w", err)
	}
	defer rows.Close()

	known := make(map[string]bool)
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		known[url] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read links: %w", err)
	}

	fresh := make([]string, 0, len(urls))
	for _, url := range urls {
		if !known[url] {
			fresh = append(fresh, url)
		}
	}
	return fresh, nil
}

type documentRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanDocuments(rows documentRows) ([]Document, error) {
	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Title, &d.Content, &d.Tags, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read documents: %w", err)
	}
	return docs, nil
}
