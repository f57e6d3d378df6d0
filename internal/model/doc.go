// Package model defines the data structures shared by the crawler, the
// persistence sinks and the report writers.
//
// This package contains the following main types:
//   - ContentRecord: the extracted content of one fetched page or PDF
//   - SourceKind: whether a record came from an HTML page or a PDF document
//   - CrawlReport: the summary of one crawl run
//   - CrawlStats: counters collected by the crawl orchestrator
//
// Models live in their own package so that crawler, sink, database and
// report can all use them without import cycles. Every type serializes to
// JSON for the aggregate sink, the database and the JSON report.
package model
