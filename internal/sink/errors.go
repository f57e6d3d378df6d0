package sink

import "errors"

var (
	// ErrClosed is returned by Put after the sink has been closed.
	ErrClosed = errors.New("sink is closed")

	// ErrNilRecord is returned by Put when the record is nil.
	ErrNilRecord = errors.New("record is nil")
)
