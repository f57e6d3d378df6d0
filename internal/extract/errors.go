package extract

import "errors"

var (
	// ErrParseHTML is returned when a page cannot be parsed as HTML.
	ErrParseHTML = errors.New("failed to parse HTML")

	// ErrMalformedPDF is returned when a PDF document cannot be read.
	ErrMalformedPDF = errors.New("malformed PDF document")

	// ErrNoText is returned when a PDF document contains no extractable text.
	ErrNoText = errors.New("no extractable text")
)
