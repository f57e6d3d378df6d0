package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidProxyAddress is returned when the proxy address format is invalid.
	// Expected format is "host:port".
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrBodyTooLarge is returned when a response body exceeds the configured limit.
	ErrBodyTooLarge = errors.New("response body exceeds size limit")

	// ErrUnsupportedScheme is returned for URLs that are not http or https.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")

	// ErrHostUnreachable is returned by CheckReachable when no TCP connection
	// to the host could be established.
	ErrHostUnreachable = errors.New("host unreachable")

	// ErrOffHostRedirect is returned when a redirect points to another host.
	// The redirected request is never sent.
	ErrOffHostRedirect = errors.New("redirect leaves the requested host")
)

// RedirectError reports a redirect response that was not followed.
type RedirectError struct {
	// URL is the requested URL.
	URL string

	// Location is the absolute redirect target.
	Location string

	// StatusCode is the 3xx status code of the response.
	StatusCode int
}

// Error implements the error interface.
func (e *RedirectError) Error() string {
	return fmt.Sprintf("redirect %d from %s to %s", e.StatusCode, e.URL, e.Location)
}

// StatusError reports a response with a status code outside the 2xx range.
type StatusError struct {
	// URL is the requested URL.
	URL string

	// StatusCode is the HTTP status code of the response.
	StatusCode int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.StatusCode, e.URL)
}

// IsClientError reports whether the status is in the 4xx range.
func (e *StatusError) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}
