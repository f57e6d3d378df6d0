package sink

import (
	"context"
	"errors"

	"github.com/nao1215/sitecrawl/internal/model"
)

// Sink persists content records.
//
// Put is called from a single goroutine per crawl. Close finalizes the
// output and must be called exactly once after the last Put.
type Sink interface {
	Put(ctx context.Context, record *model.ContentRecord) error
	Close() error
}

// MultiSink hands every record to each of its sinks in order.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink creates a MultiSink. Nil sinks are skipped.
func NewMultiSink(sinks ...Sink) *MultiSink {
	m := &MultiSink{sinks: make([]Sink, 0, len(sinks))}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Put stores record in every sink. All sinks are tried; the errors of the
// failing ones are joined.
func (m *MultiSink) Put(ctx context.Context, record *model.ContentRecord) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Put(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink and joins their errors.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of sinks.
func (m *MultiSink) Len() int {
	return len(m.sinks)
}
