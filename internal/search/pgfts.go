package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements document search using PostgreSQL full-text search as a
// fallback when Meilisearch is unavailable.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true — if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search runs plainto_tsquery over title and body with ts_headline snippets.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	where := `to_tsvector('english', coalesce(d.title, '') || ' ' || coalesce(d.body, '')) @@ plainto_tsquery('english', $1)`
	args := []any{q.Text}
	if q.CollectionID != "" {
		where += ` AND d.collection_id = $2`
		args = append(args, q.CollectionID)
	}

	countSQL := `SELECT count(*) FROM documents d WHERE ` + where

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`
		SELECT d.id, d.slug, d.title,
			ts_headline('english', coalesce(d.body, ''), plainto_tsquery('english', $1), 'MaxFragments=1,MaxWords=30') AS snippet,
			d.collection_id
		FROM documents d
		WHERE %s
		ORDER BY ts_rank(to_tsvector('english', coalesce(d.title, '') || ' ' || coalesce(d.body, '')), plainto_tsquery('english', $1)) DESC
		LIMIT %d OFFSET %d`, where, limit, offset)

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Slug, &r.Title, &r.Snippet, &r.CollectionID); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all documents for full reindexing into Meilisearch.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]DocumentRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, slug, title, body, collection_id, published_at IS NOT NULL
		FROM documents
	`)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	defer rows.Close()

	documents := make([]DocumentRecord, 0)
	for rows.Next() {
		var d DocumentRecord
		if err := rows.Scan(&d.ID, &d.Slug, &d.Title, &d.Body, &d.CollectionID, &d.Published); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		documents = append(documents, d)
	}
	return documents, rows.Err()
}
