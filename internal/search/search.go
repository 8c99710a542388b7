// Package search indexes documents for the editor's link autocomplete,
// preferring Meilisearch and falling back to Postgres full-text search.
package search

// Query is a free-text search request.
type Query struct {
	Text         string
	CollectionID string
	Limit        int
	Offset       int
}

// Result is one search hit.
type Result struct {
	ID           string `json:"id"`
	Slug         string `json:"slug"`
	Title        string `json:"title"`
	Snippet      string `json:"snippet"`
	CollectionID string `json:"collectionId"`
}

// URL is the canonical path of the matched document.
func (r Result) URL() string {
	if r.Slug != "" {
		return "/doc/" + r.Slug
	}
	return "/doc/" + r.ID
}

// Response wraps results with pagination metadata.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// DocumentRecord is the shape pushed into the search index.
type DocumentRecord struct {
	ID           string `json:"id"`
	Slug         string `json:"slug"`
	Title        string `json:"title"`
	Body         string `json:"body"`
	CollectionID string `json:"collectionId"`
	Published    bool   `json:"published"`
}
