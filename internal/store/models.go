package store

import "time"

// Document is the unit of editing. ID is empty for a document that has been
// synthesized in memory but never saved; the first successful save assigns
// both ID and Slug. PublishedAt nil means draft.
type Document struct {
	ID               string
	Slug             string
	Title            string
	Emoji            string
	Text             string
	CollectionID     string
	ParentDocumentID *string
	PublishedAt      *time.Time
	AllowSave        bool
	CreatedBy        string
	UpdatedBy        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	LastViewedAt     *time.Time
}

// URL is the canonical read path for the document.
func (d Document) URL() string {
	if d.Slug != "" {
		return "/doc/" + d.Slug
	}
	if d.ID != "" {
		return "/doc/" + d.ID
	}
	return "/doc/new"
}

// EditURL is the editing path for the document.
func (d Document) EditURL() string {
	return d.URL() + "/edit"
}

// IsDraft reports whether the document has never been published.
func (d Document) IsDraft() bool {
	return d.PublishedAt == nil
}

type Collection struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SaveOptions mirrors the flags the editing session passes through to the
// store. Publish stamps PublishedAt; Autosave marks the write as machine
// initiated so audit fields stay quiet.
type SaveOptions struct {
	Done     bool
	Publish  bool
	Autosave bool
}

// RevisionMeta describes one entry in a document's revision history.
type RevisionMeta struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

// SearchHit is a lightweight projection used by link autocomplete.
type SearchHit struct {
	ID    string
	Slug  string
	Title string
}
