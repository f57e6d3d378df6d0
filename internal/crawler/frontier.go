package crawler

import (
	"github.com/nao1215/sitecrawl/internal/model"
)

// Target is one unit of work handed out by the Frontier.
type Target struct {
	// URL is the normalized URL to process.
	URL string

	// Kind is the result of Classify for URL.
	Kind model.SourceKind

	// Claimed is true when URL was marked visited before it was queued,
	// which is how PDF documents enter the frontier.
	Claimed bool
}

// Frontier holds the discovered but unprocessed URLs of a crawl and the set
// of URLs already visited.
//
// Invariants:
//   - a URL is added to the visited set at most once
//   - a URL never sits in the page queue once visited
//   - the page queue never holds duplicates
//
// Frontier is not safe for concurrent use; it belongs to the crawl
// coordinator.
type Frontier struct {
	// queue holds page URLs in discovery order.
	queue []string

	// queued mirrors queue for membership tests.
	queued map[string]struct{}

	// documents holds PDF URLs already marked visited, processed before pages.
	documents []string

	// visited holds every URL that has been claimed for processing.
	visited map[string]struct{}
}

// NewFrontier creates an empty Frontier.
func NewFrontier() *Frontier {
	return &Frontier{
		queue:     make([]string, 0),
		queued:    make(map[string]struct{}),
		documents: make([]string, 0),
		visited:   make(map[string]struct{}),
	}
}

// Enqueue appends rawURL to the page queue unless it is already visited or
// queued. It reports whether the URL was added.
func (f *Frontier) Enqueue(rawURL string) bool {
	if _, ok := f.visited[rawURL]; ok {
		return false
	}
	if _, ok := f.queued[rawURL]; ok {
		return false
	}
	f.queue = append(f.queue, rawURL)
	f.queued[rawURL] = struct{}{}
	return true
}

// PushDocument appends rawURL to the document lane. The caller marks the
// URL visited first, so it is handed out exactly once.
func (f *Frontier) PushDocument(rawURL string) {
	f.documents = append(f.documents, rawURL)
}

// Next removes and returns the next target: documents first, then pages
// in FIFO order. It reports false when the frontier is empty.
func (f *Frontier) Next() (Target, bool) {
	if len(f.documents) > 0 {
		u := f.documents[0]
		f.documents[0] = ""
		f.documents = f.documents[1:]
		return Target{URL: u, Kind: Classify(u), Claimed: true}, true
	}
	if len(f.queue) > 0 {
		u := f.queue[0]
		f.queue[0] = ""
		f.queue = f.queue[1:]
		delete(f.queued, u)
		return Target{URL: u, Kind: Classify(u)}, true
	}
	return Target{}, false
}

// MarkVisited adds rawURL to the visited set. It reports whether the URL
// was new; marking a URL twice is harmless.
func (f *Frontier) MarkVisited(rawURL string) bool {
	if _, ok := f.visited[rawURL]; ok {
		return false
	}
	f.visited[rawURL] = struct{}{}
	return true
}

// Visited reports whether rawURL has been marked visited.
func (f *Frontier) Visited(rawURL string) bool {
	_, ok := f.visited[rawURL]
	return ok
}

// Len returns the number of targets waiting in both lanes.
func (f *Frontier) Len() int {
	return len(f.queue) + len(f.documents)
}

// VisitedCount returns the size of the visited set.
func (f *Frontier) VisitedCount() int {
	return len(f.visited)
}
