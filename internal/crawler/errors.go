package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSeed is returned when the seed URL cannot be crawled.
	ErrInvalidSeed = errors.New("invalid seed URL")

	// ErrDisallowed is the cause of a PolicyDenied error.
	ErrDisallowed = errors.New("disallowed by robots.txt")

	// ErrRedirectOutOfScope is the cause of a FetchFailure for a redirect
	// that leaves the crawled site.
	ErrRedirectOutOfScope = errors.New("redirect leaves the crawl scope")
)

// ErrorKind classifies a crawl error.
type ErrorKind int

const (
	// ScopeRejection means a URL is off-host, has an unsupported scheme or
	// is malformed. It is never fetched.
	ScopeRejection ErrorKind = iota + 1

	// PolicyDenied means robots.txt forbids the URL.
	PolicyDenied

	// FetchFailure covers network errors, timeouts and non-2xx responses.
	FetchFailure

	// ExtractionFailure means a fetched resource produced no record.
	ExtractionFailure

	// PersistenceFailure means the sink could not store a record.
	PersistenceFailure

	// FatalStartup stops the run: invalid seed, unreachable seed host or
	// robots.txt unavailable in strict mode.
	FatalStartup
)

// String returns the snake_case name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case ScopeRejection:
		return "scope_rejection"
	case PolicyDenied:
		return "policy_denied"
	case FetchFailure:
		return "fetch_failure"
	case ExtractionFailure:
		return "extraction_failure"
	case PersistenceFailure:
		return "persistence_failure"
	case FatalStartup:
		return "fatal_startup"
	default:
		return "unknown"
	}
}

// CrawlError is an error tied to one URL.
type CrawlError struct {
	// Kind classifies the error.
	Kind ErrorKind

	// URL is the URL being processed.
	URL string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *CrawlError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *CrawlError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err is a CrawlError of kind FatalStartup.
func IsFatal(err error) bool {
	var crawlErr *CrawlError
	return errors.As(err, &crawlErr) && crawlErr.Kind == FatalStartup
}
