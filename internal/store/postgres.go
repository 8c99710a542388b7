package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"inkwell/api/internal/util"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

const documentColumns = `id, slug, title, emoji, body, collection_id, parent_document_id,
	published_at, allow_save, created_by, updated_by, created_at, updated_at, last_viewed_at`

func scanDocument(row interface{ Scan(...any) error }) (Document, error) {
	var d Document
	var emoji, createdBy, updatedBy sql.NullString
	err := row.Scan(&d.ID, &d.Slug, &d.Title, &emoji, &d.Text, &d.CollectionID,
		&d.ParentDocumentID, &d.PublishedAt, &d.AllowSave,
		&createdBy, &updatedBy, &d.CreatedAt, &d.UpdatedAt, &d.LastViewedAt)
	if err != nil {
		return Document{}, err
	}
	d.Emoji = emoji.String
	d.CreatedBy = createdBy.String
	d.UpdatedBy = updatedBy.String
	return d, nil
}

// FetchDocument resolves a document by slug or id. A non-empty shareToken
// widens visibility to documents that have an unrevoked share matching it;
// without one only regular documents are visible.
func (s *PostgresStore) FetchDocument(ctx context.Context, slugOrID, shareToken string) (Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE (slug = $1 OR id = $1)`
	args := []any{slugOrID}
	if shareToken != "" {
		query += ` AND (share_token IS NULL OR share_token = $2)`
		args = append(args, shareToken)
	}

	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, classify(fmt.Errorf("fetch document %s: %w", slugOrID, err))
	}
	return doc, nil
}

// SaveDocument persists the document and returns the canonical row. A
// document without an id is inserted and assigned an id and a slug derived
// from its title; otherwise the existing row is updated. Publish stamps
// published_at if not already set.
func (s *PostgresStore) SaveDocument(ctx context.Context, doc Document, opts SaveOptions) (Document, error) {
	now := time.Now().UTC()

	if doc.ID == "" {
		doc.ID = util.NewID("doc")
		doc.Slug = util.Slugify(doc.Title)
		doc.AllowSave = true
		if opts.Publish {
			doc.PublishedAt = &now
		}
		const insert = `
			INSERT INTO documents (id, slug, title, emoji, body, collection_id, parent_document_id,
				published_at, allow_save, created_by, updated_by, created_at, updated_at)
			VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, NULLIF($10, ''), NULLIF($11, ''), $12, $12)`
		_, err := s.db.ExecContext(ctx, insert, doc.ID, doc.Slug, doc.Title, doc.Emoji,
			doc.Text, doc.CollectionID, doc.ParentDocumentID, doc.PublishedAt, doc.AllowSave,
			doc.CreatedBy, doc.UpdatedBy, now)
		if err != nil {
			return Document{}, classify(fmt.Errorf("insert document: %w", err))
		}
		doc.CreatedAt = now
		doc.UpdatedAt = now
		return doc, nil
	}

	publish := ""
	if opts.Publish {
		publish = `, published_at = COALESCE(published_at, $6)`
	}
	update := `
		UPDATE documents
		SET title = $2, emoji = NULLIF($3, ''), body = $4, updated_by = NULLIF($5, ''), updated_at = $6` + publish + `
		WHERE id = $1
		RETURNING ` + documentColumns
	updated, err := scanDocument(s.db.QueryRowContext(ctx, update, doc.ID, doc.Title, doc.Emoji,
		doc.Text, doc.UpdatedBy, now))
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, classify(fmt.Errorf("update document %s: %w", doc.ID, err))
	}
	return updated, nil
}

// MarkViewed records a read of a published document. Fired once per session
// after the view delay elapses.
func (s *PostgresStore) MarkViewed(ctx context.Context, documentID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE documents SET last_viewed_at = NOW(), view_count = view_count + 1 WHERE id = $1`,
		documentID)
	if err != nil {
		return classify(fmt.Errorf("mark viewed %s: %w", documentID, err))
	}
	return nil
}

// SearchDocuments is the plain title/body search backing link autocomplete
// when Meilisearch is not available.
func (s *PostgresStore) SearchDocuments(ctx context.Context, term string, limit int) ([]SearchHit, error) {
	if strings.TrimSpace(term) == "" {
		return []SearchHit{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, slug, title
		FROM documents
		WHERE title ILIKE '%' || $1 || '%' OR body ILIKE '%' || $1 || '%'
		ORDER BY updated_at DESC
		LIMIT $2`, term, limit)
	if err != nil {
		return nil, classify(fmt.Errorf("search documents: %w", err))
	}
	defer rows.Close()

	hits := make([]SearchHit, 0)
	for rows.Next() {
		var h SearchHit
		if err := rows.Scan(&h.ID, &h.Slug, &h.Title); err != nil {
			return nil, fmt.Errorf("scan search hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (s *PostgresStore) GetCollection(ctx context.Context, id string) (Collection, error) {
	var c Collection
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at, updated_at FROM collections WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Collection{}, ErrNotFound
	}
	if err != nil {
		return Collection{}, classify(fmt.Errorf("get collection %s: %w", id, err))
	}
	return c, nil
}

func (s *PostgresStore) EnsureCollection(ctx context.Context, id, name string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO collections (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING`, id, name)
	if err != nil {
		return classify(fmt.Errorf("ensure collection %s: %w", id, err))
	}
	return nil
}

// SetShareToken attaches a share token (with optional bcrypt password hash)
// to a document. Empty token revokes sharing.
func (s *PostgresStore) SetShareToken(ctx context.Context, documentID, token, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET share_token = NULLIF($2, ''), share_password_hash = NULLIF($3, '')
		WHERE id = $1`, documentID, token, passwordHash)
	if err != nil {
		return classify(fmt.Errorf("set share token %s: %w", documentID, err))
	}
	return nil
}

// SharePasswordHash returns the bcrypt hash guarding a document's share link,
// or empty when the link is not password protected.
func (s *PostgresStore) SharePasswordHash(ctx context.Context, documentID string) (string, error) {
	var hash sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT share_password_hash FROM documents WHERE id = $1`, documentID).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", classify(fmt.Errorf("share password hash %s: %w", documentID, err))
	}
	return hash.String, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
