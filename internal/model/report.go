package model

import (
	"time"
)

// MaxFailures bounds how many failure entries a CrawlReport keeps.
// Counters in CrawlStats keep counting past this limit.
const MaxFailures = 500

// CrawlStats holds the counters collected while crawling one site.
type CrawlStats struct {
	// PagesProcessed counts resources that were fetched successfully.
	// This is the number checked against the page budget.
	PagesProcessed int `json:"pages_processed"`

	// Visited counts distinct URLs marked visited, including denied and failed ones.
	Visited int `json:"visited"`

	// RecordsProduced counts records accepted by the sink.
	RecordsProduced int `json:"records_produced"`

	// HTMLRecords counts records with SourceKindHTML.
	HTMLRecords int `json:"html_records"`

	// PDFRecords counts records with SourceKindPDF.
	PDFRecords int `json:"pdf_records"`

	// Denied counts URLs skipped because robots.txt forbids them.
	Denied int `json:"denied"`

	// FetchFailures counts network errors, timeouts and non-2xx responses.
	FetchFailures int `json:"fetch_failures"`

	// ExtractionFailures counts fetched resources that produced no record.
	ExtractionFailures int `json:"extraction_failures"`

	// PersistenceFailures counts records the sink failed to store.
	PersistenceFailures int `json:"persistence_failures"`
}

// Failed returns the number of URLs that were fetched or attempted without
// producing a stored record. Denied URLs are not failures.
func (s CrawlStats) Failed() int {
	return s.FetchFailures + s.ExtractionFailures + s.PersistenceFailures
}

// Failure describes one per-URL error recorded during a crawl.
type Failure struct {
	// URL is the URL the error belongs to.
	URL string `json:"url"`

	// Kind is the error category (e.g. "fetch_failure").
	Kind string `json:"kind"`

	// Message is the error text.
	Message string `json:"message"`
}

// CrawlReport summarizes one crawl run from seed to completion.
type CrawlReport struct {
	// RunID is the database identifier of the run, zero when not persisted.
	RunID int64 `json:"run_id,omitempty"`

	// Seed is the normalized seed URL.
	Seed string `json:"seed"`

	// Host is the host the crawl is scoped to.
	Host string `json:"host"`

	// StartedAt is when the run started.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the run finished, zero while running.
	FinishedAt time.Time `json:"finished_at"`

	// Stats holds the crawl counters.
	Stats CrawlStats `json:"stats"`

	// Failures lists per-URL errors, capped at MaxFailures entries.
	Failures []Failure `json:"failures,omitempty"`

	// PerformedSteps lists the pipeline steps that ran, in order.
	PerformedSteps []string `json:"performed_steps"`

	// Cancelled is true when the run was interrupted before completion.
	Cancelled bool `json:"cancelled"`

	// Error is the fatal error that stopped the run, if any.
	Error error `json:"-"`

	// ErrorMessage is Error as a string for serialization.
	ErrorMessage string `json:"error,omitempty"`
}

// NewCrawlReport creates a report for a run starting now.
func NewCrawlReport(seed string) *CrawlReport {
	return &CrawlReport{
		Seed:           seed,
		StartedAt:      time.Now(),
		Failures:       make([]Failure, 0),
		PerformedSteps: make([]string, 0),
	}
}

// AddFailure records a per-URL failure. Entries past MaxFailures are dropped.
func (r *CrawlReport) AddFailure(f Failure) {
	if len(r.Failures) >= MaxFailures {
		return
	}
	r.Failures = append(r.Failures, f)
}

// SetError records the fatal error that stopped the run.
func (r *CrawlReport) SetError(err error) {
	r.Error = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}

// Finish marks the run as finished now.
func (r *CrawlReport) Finish() {
	r.FinishedAt = time.Now()
}

// Duration returns how long the run took. For an unfinished run it
// returns the time elapsed so far.
func (r *CrawlReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Status returns "complete", "cancelled" or "error".
func (r *CrawlReport) Status() string {
	switch {
	case r.ErrorMessage != "":
		return "error"
	case r.Cancelled:
		return "cancelled"
	default:
		return "complete"
	}
}
