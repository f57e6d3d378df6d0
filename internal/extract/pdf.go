package extract

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pdfTempPattern is the os.CreateTemp pattern for downloaded documents.
const pdfTempPattern = "sitecrawl-*.pdf"

// PDFExtractor extracts text from PDF documents.
// It is safe for concurrent use; every call works on its own temporary file.
type PDFExtractor struct {
	// tempDir is where temporary files are created, "" for the OS default.
	tempDir string

	// logger receives debug output.
	logger *slog.Logger
}

// PDFOption configures a PDFExtractor.
type PDFOption func(*PDFExtractor)

// WithTempDir sets the directory for temporary files.
func WithTempDir(dir string) PDFOption {
	return func(e *PDFExtractor) {
		e.tempDir = dir
	}
}

// WithPDFLogger sets the logger.
func WithPDFLogger(logger *slog.Logger) PDFOption {
	return func(e *PDFExtractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewPDFExtractor creates a PDFExtractor.
func NewPDFExtractor(opts ...PDFOption) *PDFExtractor {
	e := &PDFExtractor{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract reads the text of the PDF document body fetched from pdfURL.
//
// Pages are read in order and joined with newlines. The title is the
// unescaped filename of the URL path. The returned Document never has links.
// A document without any text yields ErrNoText.
func (e *PDFExtractor) Extract(ctx context.Context, pdfURL string, body []byte) (*Document, error) {
	tmp, err := os.CreateTemp(e.tempDir, pdfTempPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if rmErr := os.Remove(tmpPath); rmErr != nil && !os.IsNotExist(rmErr) {
			e.logger.Warn("failed to remove temp file", "path", tmpPath, "error", rmErr)
		}
	}()

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	pages, err := readPages(ctx, tmpPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", pdfURL, err)
	}

	raw := strings.Join(pages, "\n")
	cleaned := CleanText(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoText, pdfURL)
	}

	e.logger.Debug("extracted pdf", "url", pdfURL, "pages", len(pages), "chars", len(cleaned))

	return &Document{
		Title:       pdfTitle(pdfURL),
		RawText:     raw,
		CleanedText: cleaned,
		Links:       []string{},
	}, nil
}

// readPages returns the trimmed plain text of every page that has content.
// The pdf package panics on some malformed input; the panic is returned as
// ErrMalformedPDF.
func readPages(ctx context.Context, filename string) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("%w: %v", ErrMalformedPDF, r)
		}
	}()

	f, reader, err := pdf.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPDF, err)
	}
	defer f.Close()

	total := reader.NumPage()
	pages = make([]string, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %w", ErrMalformedPDF, i, err)
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	return pages, nil
}

// pdfTitle returns the unescaped last path segment of pdfURL.
func pdfTitle(pdfURL string) string {
	u, err := url.Parse(pdfURL)
	if err != nil {
		return pdfURL
	}
	name := path.Base(u.EscapedPath())
	if name == "/" || name == "." {
		return u.Host
	}
	if unescaped, err := url.PathUnescape(name); err == nil {
		return unescaped
	}
	return name
}
