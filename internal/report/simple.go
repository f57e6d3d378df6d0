package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/sitecrawl/internal/model"
)

// defaultFailureLimit is how many failures SimpleWriter lists unless verbose.
const defaultFailureLimit = 10

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// verbose lists every failure and the performed steps.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.CrawlReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	w.writeFailures(&sb, report)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeSection writes a section title between two rules.
func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title + "\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

// writeHeader writes the report header with run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.CrawlReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                        SITECRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Seed:     %s\n", report.Seed)
	if report.RunID > 0 {
		fmt.Fprintf(sb, "Run:      #%d\n", report.RunID)
	}
	fmt.Fprintf(sb, "Started:  %s\n", report.StartedAt.Format(dateFormat))
	fmt.Fprintf(sb, "Duration: %s\n", report.Duration().Round(time.Millisecond))

	switch report.Status() {
	case "error":
		fmt.Fprintf(sb, "Status:   ERROR - %s\n", report.ErrorMessage)
	case "cancelled":
		sb.WriteString("Status:   CANCELLED (partial results)\n")
	default:
		sb.WriteString("Status:   Complete\n")
	}
	if w.verbose && len(report.PerformedSteps) > 0 {
		fmt.Fprintf(sb, "Steps:    %s\n", strings.Join(report.PerformedSteps, " -> "))
	}
	sb.WriteString("\n")
}

// writeSummary writes the crawl counters.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.CrawlReport) {
	writeSection(sb, "SUMMARY")

	s := report.Stats
	fmt.Fprintf(sb, "  Records produced:     %d (HTML %d, PDF %d)\n", s.RecordsProduced, s.HTMLRecords, s.PDFRecords)
	fmt.Fprintf(sb, "  Pages visited:        %d\n", s.Visited)
	fmt.Fprintf(sb, "  Pages fetched:        %d\n", s.PagesProcessed)
	fmt.Fprintf(sb, "  Denied by robots.txt: %d\n", s.Denied)
	fmt.Fprintf(sb, "  Failed:               %d\n", s.Failed())
	if s.Failed() > 0 {
		fmt.Fprintf(sb, "    fetch:       %d\n", s.FetchFailures)
		fmt.Fprintf(sb, "    extraction:  %d\n", s.ExtractionFailures)
		fmt.Fprintf(sb, "    persistence: %d\n", s.PersistenceFailures)
	}
	sb.WriteString("\n")
}

// writeFailures lists per-URL failures.
func (w *SimpleWriter) writeFailures(sb *strings.Builder, report *model.CrawlReport) {
	if len(report.Failures) == 0 {
		return
	}

	writeSection(sb, "FAILURES")

	limit := len(report.Failures)
	if !w.verbose && limit > defaultFailureLimit {
		limit = defaultFailureLimit
	}
	for _, f := range report.Failures[:limit] {
		fmt.Fprintf(sb, "  [%s] %s\n", f.Kind, f.URL)
		fmt.Fprintf(sb, "    %s\n", truncateString(f.Message, 120))
	}
	if rest := len(report.Failures) - limit; rest > 0 {
		fmt.Fprintf(sb, "  ... and %d more (use --verbose to list all)\n", rest)
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by sitecrawl\n")
	sb.WriteString("https://github.com/nao1215/sitecrawl\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
