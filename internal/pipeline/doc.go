// Package pipeline runs one crawl as a sequence of steps.
//
// A run is prepare, crawl and finalize. Each step receives the shared
// CrawlReport and records what it did there. Final steps run after the
// regular steps even when one of them failed or the run was cancelled, so
// sinks are always closed and the run is always marked finished.
package pipeline
