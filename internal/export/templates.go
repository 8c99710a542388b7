package export

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	ghtml "github.com/yuin/goldmark/renderer/html"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(ghtml.WithHardWraps()),
)

type templateData struct {
	Title       string
	Emoji       string
	Author      string
	UpdatedAt   time.Time
	ContentHTML template.HTML
}

var documentTemplate = template.Must(template.New("document").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: -apple-system, 'Segoe UI', Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; color: #1a1a1a; }
    h1.doc-title { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    pre { background: #f5f5f5; padding: 1rem; overflow-x: auto; }
    blockquote { border-left: 3px solid #ccc; margin-left: 0; padding-left: 1rem; color: #555; }
    table { border-collapse: collapse; }
    th, td { border: 1px solid #ccc; padding: 0.4rem 0.7rem; }
  </style>
</head>
<body>
  <h1 class="doc-title">{{if .Emoji}}{{.Emoji}} {{end}}{{.Title}}</h1>
  <div class="meta">{{if .Author}}{{.Author}} | {{end}}{{.UpdatedAt.Format "Jan 2, 2006"}}</div>
  <div>{{.ContentHTML}}</div>
</body>
</html>`))

// RenderHTML converts the document's markdown body to a full HTML page.
func RenderHTML(doc Document) (string, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(doc.Text), &body); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}

	title := doc.Title
	if title == "" {
		title = "Untitled"
	}

	var page bytes.Buffer
	err := documentTemplate.Execute(&page, templateData{
		Title:       title,
		Emoji:       doc.Emoji,
		Author:      doc.Author,
		UpdatedAt:   doc.UpdatedAt,
		ContentHTML: template.HTML(body.String()),
	})
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return page.String(), nil
}
