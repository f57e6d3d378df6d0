package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/sitecrawl/internal/model"
)

// markdownFailureLimit caps the failure table of a Markdown report.
const markdownFailureLimit = 50

// MarkdownWriter outputs reports in Markdown format using nao1215/markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeFailures(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.CrawlReport) {
	md.H1("Crawl Report")
	md.PlainText("")

	rows := [][]string{
		{"Seed", "`" + report.Seed + "`"},
		{"Started", report.StartedAt.Format(dateFormat)},
		{"Duration", report.Duration().Round(time.Millisecond).String()},
		{"Status", statusText(report)},
	}
	if report.RunID > 0 {
		rows = append(rows, []string{"Run", "#" + strconv.FormatInt(report.RunID, 10)})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// statusText returns the status text based on report state.
func statusText(report *model.CrawlReport) string {
	switch report.Status() {
	case "error":
		return "❌ Error - " + report.ErrorMessage
	case "cancelled":
		return "⚠️ Cancelled (partial results)"
	default:
		return "✅ Complete"
	}
}

// writeSummary writes the counters, a record pie chart and an alert.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.CrawlReport) {
	s := report.Stats

	md.H2("Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Counter", "Value"},
		Rows: [][]string{
			{"Records produced", strconv.Itoa(s.RecordsProduced)},
			{"HTML pages", strconv.Itoa(s.HTMLRecords)},
			{"PDF documents", strconv.Itoa(s.PDFRecords)},
			{"Pages visited", strconv.Itoa(s.Visited)},
			{"Pages fetched", strconv.Itoa(s.PagesProcessed)},
			{"Denied by robots.txt", strconv.Itoa(s.Denied)},
			{"Fetch failures", strconv.Itoa(s.FetchFailures)},
			{"Extraction failures", strconv.Itoa(s.ExtractionFailures)},
			{"Persistence failures", strconv.Itoa(s.PersistenceFailures)},
		},
	})
	md.PlainText("")

	if s.RecordsProduced > 0 {
		w.writePieChart(md, s)
	}
	w.writeAlert(md, report)
}

// writePieChart writes a mermaid pie chart of records by kind.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s model.CrawlStats) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Records by Source Kind"),
		piechart.WithShowData(true),
	)
	if s.HTMLRecords > 0 {
		chart.LabelAndIntValue(model.SourceKindHTML.Label(), uint64(s.HTMLRecords))
	}
	if s.PDFRecords > 0 {
		chart.LabelAndIntValue(model.SourceKindPDF.Label(), uint64(s.PDFRecords))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert matching the outcome of the run.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.CrawlReport) {
	s := report.Stats
	switch {
	case report.Status() == "error":
		md.Cautionf("The crawl stopped: %s", report.ErrorMessage)
	case report.Cancelled:
		md.Warningf("The crawl was interrupted after %d record(s).", s.RecordsProduced)
	case s.Failed() > 0:
		md.Importantf("%d URL(s) failed during the crawl.", s.Failed())
	case s.RecordsProduced == 0:
		md.Note("No records were produced.")
	default:
		md.Tip("All reachable pages were crawled without errors.")
	}
	md.PlainText("")
}

// writeFailures writes the failure table.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Failures")
	md.PlainText("")

	if len(report.Failures) == 0 {
		md.PlainText("No failures.")
		md.PlainText("")
		return
	}

	failures := report.Failures
	if len(failures) > markdownFailureLimit {
		failures = failures[:markdownFailureLimit]
	}
	rows := make([][]string, len(failures))
	for i, f := range failures {
		rows[i] = []string{
			f.Kind,
			truncateString(f.URL, 80),
			truncateString(f.Message, 80),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Kind", "URL", "Error"},
		Rows:   rows,
	})
	md.PlainText("")

	if rest := len(report.Failures) - len(failures); rest > 0 {
		md.PlainTextf("%d more failure(s) not shown.", rest)
		md.PlainText("")
	}
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [sitecrawl](https://github.com/nao1215/sitecrawl)*")
}
