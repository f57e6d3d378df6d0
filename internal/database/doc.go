// Package database provides SQLite-based storage for sitecrawl.
//
// The CrawlDB keeps a history of crawl runs:
//   - one row per run with its seed, status and counters
//   - one row per stored content record, linked to its run
//
// SQLite is used through modernc.org/sqlite, a CGO-free driver, so the
// database is a single file next to the user's other application data.
package database
