package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/nao1215/sitecrawl/internal/model"
)

// AggregateSink collects records in memory and writes them as one JSON
// array when closed. The file is written to a temporary name in the same
// directory and renamed into place, so readers never see a partial array.
type AggregateSink struct {
	path string

	mu      sync.Mutex
	records []*model.ContentRecord
	closed  bool
}

// NewAggregateSink creates an AggregateSink writing to path on Close.
// The parent directory is created if needed.
func NewAggregateSink(path string) (*AggregateSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &AggregateSink{
		path:    path,
		records: make([]*model.ContentRecord, 0),
	}, nil
}

// Path returns the destination file.
func (s *AggregateSink) Path() string {
	return s.path
}

// Put buffers a copy of record without its markup.
func (s *AggregateSink) Put(_ context.Context, record *model.ContentRecord) error {
	if record == nil {
		return ErrNilRecord
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	kept := *record
	kept.HTML = ""
	s.records = append(s.records, &kept)
	return nil
}

// Len returns the number of buffered records.
func (s *AggregateSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Close writes the buffered records. An empty crawl produces "[]".
// Calling Close again is a no-op.
func (s *AggregateSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".sitecrawl-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write records: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write records: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to move records into place: %w", err)
	}
	return nil
}
