// Package sink stores content records produced by a crawl.
//
// A Sink receives records one at a time from the crawl coordinator and is
// closed once when the run ends. FileSink writes one text file per record,
// AggregateSink collects every record and writes a single JSON array on
// Close, and MultiSink fans a record out to several sinks.
package sink
