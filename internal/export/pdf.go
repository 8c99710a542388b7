package export

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Service prints documents to PDF through a remote headless Chrome instance
// reachable over the DevTools protocol.
type Service struct {
	chromeURL string
}

// NewService creates an exporter. chromeURL may be empty, in which case every
// PDF request fails with ErrRendererUnavailable.
func NewService(chromeURL string) *Service {
	return &Service{chromeURL: chromeURL}
}

// Available reports whether a Chrome endpoint is configured.
func (s *Service) Available() bool {
	return s.chromeURL != ""
}

// ExportPDF renders the document to HTML and prints it to PDF.
func (s *Service) ExportPDF(ctx context.Context, doc Document) (*Result, error) {
	if s.chromeURL == "" {
		return nil, fmt.Errorf("%w: no chrome endpoint configured", ErrRendererUnavailable)
	}

	html, err := RenderHTML(doc)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	allocCtx, cancel := chromedp.NewRemoteAllocator(ctx, s.chromeURL)
	defer cancel()

	taskCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	// url.QueryEscape encodes spaces as +, which breaks data URLs.
	dataURL := "data:text/html;charset=utf-8," + percentEncodeForDataURL(html)

	var pdfData []byte
	err = chromedp.Run(taskCtx,
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdfData, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.5).
				WithPaperHeight(11.0).
				WithMarginTop(0.75).
				WithMarginBottom(0.75).
				WithMarginLeft(0.75).
				WithMarginRight(0.75).
				WithPreferCSSPageSize(true).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRendererUnavailable, err)
	}

	return &Result{
		Data:     pdfData,
		Filename: sanitizeFilename(doc.Title) + ".pdf",
		MimeType: "application/pdf",
	}, nil
}

func percentEncodeForDataURL(s string) string {
	var result strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '-', r == '_', r == '.', r == '~':
			result.WriteRune(r)
		case r == ' ':
			result.WriteString("%20")
		default:
			for _, b := range []byte(string(r)) {
				result.WriteString(fmt.Sprintf("%%%02X", b))
			}
		}
	}
	return result.String()
}

func sanitizeFilename(title string) string {
	result := ""
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			result += string(r)
		case r == ' ':
			result += "-"
		case r == '-', r == '_':
			result += string(r)
		}
	}
	if len(result) > 50 {
		result = result[:50]
	}
	if result == "" {
		result = "document"
	}
	return result
}
