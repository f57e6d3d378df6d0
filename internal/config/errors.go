package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoSeed is returned when no seed URL is given.
	ErrNoSeed = errors.New("no seed URL specified")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidWorkers is returned when the worker count is below one.
	ErrInvalidWorkers = errors.New("invalid workers: must be at least 1")

	// ErrInvalidMaxPages is returned when the page budget is negative.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative (0 means unbounded)")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidDelay is returned when the request delay is negative.
	ErrInvalidDelay = errors.New("invalid delay: must be non-negative")

	// ErrInvalidJitter is returned when the jitter bounds are negative or
	// the minimum exceeds the maximum.
	ErrInvalidJitter = errors.New("invalid jitter: bounds must be non-negative and min must not exceed max")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidRobotsMode is returned for a robots mode other than
	// "lenient" or "strict".
	ErrInvalidRobotsMode = errors.New("invalid robots mode: must be lenient or strict")

	// ErrNoOutput is returned when records would not be stored anywhere.
	ErrNoOutput = errors.New("no output: set an output directory, a JSON file or enable the database")

	// ErrHTMLWithoutOutputDir is returned when page markup should be saved
	// but file output is disabled.
	ErrHTMLWithoutOutputDir = errors.New("saving HTML requires an output directory")
)
