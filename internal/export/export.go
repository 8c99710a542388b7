// Package export renders a document's markdown to styled HTML and prints it to
// PDF with headless Chrome.
package export

import (
	"errors"
	"time"
)

// Document is the content handed to the exporter.
type Document struct {
	Title     string
	Emoji     string
	Text      string
	Author    string
	UpdatedAt time.Time
}

// Result is the export output.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrRendererUnavailable indicates headless Chrome is not configured or
	// not reachable.
	ErrRendererUnavailable = errors.New("export renderer unavailable")
)
