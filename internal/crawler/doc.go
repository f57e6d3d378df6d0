// Package crawler discovers and processes the pages of one site.
//
// # Architecture
//
// The package is built around the Spider type, which runs one crawl from a
// seed URL to completion. A single coordinator goroutine owns the Frontier
// (queue plus visited set) and the record sink; a bounded pool of workers
// (golang.org/x/sync/errgroup) performs the politeness check, the fetch and
// the extraction for each target and reports an outcome back. Because only
// the coordinator touches crawl state, neither the frontier nor the sink
// needs locking.
//
// # Components
//
//   - Scope: seed validation, URL resolution, normalization and the
//     same-host rule, plus optional ignore/follow path patterns
//   - Classify: decides whether a URL is an HTML page or a PDF document
//   - Frontier: FIFO queue of pages, a lane for PDF documents, visited set
//   - Spider: the crawl orchestrator
//
// # Error handling
//
// Every per-URL problem is a *CrawlError with an ErrorKind. Per-URL errors
// are logged, counted in model.CrawlStats and reported to the failure
// handler; the crawl then moves on. Only an invalid seed or an unusable
// robots policy stops the run.
//
// # Usage
//
//	spider := crawler.NewSpider(fetchClient,
//		crawler.WithGate(gate),
//		crawler.WithMaxPages(100),
//	)
//	stats, err := spider.Crawl(ctx, "https://example.org/", sink)
package crawler
