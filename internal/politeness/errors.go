package politeness

import "errors"

var (
	// ErrRobotsUnavailable is returned in strict mode when robots.txt could not
	// be retrieved (transport error or 5xx response).
	ErrRobotsUnavailable = errors.New("robots.txt unavailable")

	// ErrInvalidMode is returned when a robots mode string is not recognized.
	ErrInvalidMode = errors.New("invalid robots mode: must be 'lenient' or 'strict'")
)
