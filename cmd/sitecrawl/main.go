// Package main provides the entry point for the sitecrawl CLI.
//
// sitecrawl crawls one website from a seed URL, extracts the content of its
// HTML pages and linked PDF documents, and stores the results as content
// records while respecting robots.txt and a request delay.
//
// Usage:
//
//	sitecrawl crawl <seed-url>
//	sitecrawl history [host]
//
// See --help for all available options.
package main

// main is the entry point for sitecrawl.
func main() {
	Execute()
}
