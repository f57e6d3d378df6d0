// Package report renders crawl run summaries.
//
// This package contains writers for different output formats:
//   - SimpleWriter: human-readable text for terminal display
//   - MarkdownWriter: Markdown for sharing and documentation
//   - JSONWriter: structured JSON for tool integration
//
// Writers implement the Writer interface and can be combined with
// MultiWriter, e.g. to print to the terminal and save a file at once.
package report
