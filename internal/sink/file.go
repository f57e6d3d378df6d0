package sink

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/nao1215/sitecrawl/internal/crawler"
	"github.com/nao1215/sitecrawl/internal/model"
)

// PDFLinkIndexName is the file listing every PDF URL seen during a run.
const PDFLinkIndexName = "pdf_links.txt"

// FileSink writes one text file per record into a directory.
// Each file starts with a "URL:" and a "Title:" line, then a blank line
// and the raw text with its block structure.
//
// When an HTML directory is set, the fetched markup of every HTML page is
// stored there as well, under the same stem with an ".html" extension.
// On Close the sorted PDF URLs seen in records and their links are written
// to pdf_links.txt.
type FileSink struct {
	dir     string
	htmlDir string
	logger  *slog.Logger

	mu       sync.Mutex
	used     map[string]struct{}
	pdfLinks map[string]struct{}
	closed   bool
}

// FileOption configures a FileSink.
type FileOption func(*FileSink)

// WithFileLogger sets the logger of a FileSink.
func WithFileLogger(logger *slog.Logger) FileOption {
	return func(s *FileSink) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHTMLDir stores the raw markup of HTML pages in dir.
func WithHTMLDir(dir string) FileOption {
	return func(s *FileSink) {
		s.htmlDir = dir
	}
}

// NewFileSink creates dir if needed and returns a FileSink writing into it.
func NewFileSink(dir string, opts ...FileOption) (*FileSink, error) {
	s := &FileSink{
		dir:      dir,
		logger:   slog.Default(),
		used:     make(map[string]struct{}),
		pdfLinks: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, d := range []string{s.dir, s.htmlDir} {
		if d == "" {
			continue
		}
		if err := os.MkdirAll(d, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	return s, nil
}

// Dir returns the output directory.
func (s *FileSink) Dir() string {
	return s.dir
}

// Put writes record to its own file. Two records mapping to the same file
// name within one run get numbered names instead of overwriting each other.
func (s *FileSink) Put(_ context.Context, record *model.ContentRecord) error {
	if record == nil {
		return ErrNilRecord
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	name := s.claim(FileName(record.SourceURL, record.SourceKind))
	s.collectPDFLinks(record)
	s.mu.Unlock()

	var b strings.Builder
	b.WriteString("URL: " + record.SourceURL + "\n")
	b.WriteString("Title: " + record.Title + "\n\n")
	b.WriteString(record.RawText)
	b.WriteString("\n")

	target := filepath.Join(s.dir, name)
	if err := os.WriteFile(target, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	s.logger.Debug("record written", "url", record.SourceURL, "file", target)

	if s.htmlDir == "" || record.SourceKind != model.SourceKindHTML || record.HTML == "" {
		return nil
	}
	stem, _ := splitName(name)
	htmlName := fitName(stem, "", ".html")
	if err := os.WriteFile(filepath.Join(s.htmlDir, htmlName), []byte(record.HTML), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", htmlName, err)
	}
	return nil
}

// claim reserves name for this run, numbering it on collision.
// Numbered names are shortened so they stay within MaxFileNameLength.
// The caller holds s.mu.
func (s *FileSink) claim(name string) string {
	if _, ok := s.used[name]; !ok {
		s.used[name] = struct{}{}
		return name
	}

	stem, ext := splitName(name)
	for i := 2; ; i++ {
		candidate := fitName(stem, "_"+strconv.Itoa(i), ext)
		if _, ok := s.used[candidate]; !ok {
			s.used[candidate] = struct{}{}
			return candidate
		}
	}
}

// collectPDFLinks remembers the PDF URLs carried by record.
// The caller holds s.mu.
func (s *FileSink) collectPDFLinks(record *model.ContentRecord) {
	if record.SourceKind == model.SourceKindPDF {
		s.pdfLinks[record.SourceURL] = struct{}{}
	}
	for _, link := range record.DiscoveredLinks {
		if crawler.Classify(link) == model.SourceKindPDF {
			s.pdfLinks[link] = struct{}{}
		}
	}
}

// PDFLinks returns the PDF URLs seen so far in sorted order.
func (s *FileSink) PDFLinks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	links := make([]string, 0, len(s.pdfLinks))
	for link := range s.pdfLinks {
		links = append(links, link)
	}
	slices.Sort(links)
	return links
}

// Close marks the sink closed and writes pdf_links.txt when any PDF URL
// was seen. Calling Close again is a no-op.
func (s *FileSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	empty := len(s.pdfLinks) == 0
	s.mu.Unlock()

	if empty {
		return nil
	}
	links := s.PDFLinks()
	data := strings.Join(links, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(s.dir, PDFLinkIndexName), []byte(data), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", PDFLinkIndexName, err)
	}
	s.logger.Debug("pdf link index written", "links", len(links))
	return nil
}

// fitName joins stem, suffix and ext, cutting the stem so the result is
// at most MaxFileNameLength bytes long.
func fitName(stem, suffix, ext string) string {
	if room := MaxFileNameLength - len(suffix) - len(ext); len(stem) > room {
		stem = stem[:max(room, 0)]
	}
	return stem + suffix + ext
}

// splitName splits a generated file name into stem and ".txt" or ".pdf.txt".
func splitName(name string) (string, string) {
	for _, ext := range []string{".pdf.txt", ".txt"} {
		if stem, ok := strings.CutSuffix(name, ext); ok {
			return stem, ext
		}
	}
	return name, ""
}
