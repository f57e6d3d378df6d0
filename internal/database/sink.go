package database

import (
	"context"

	"github.com/nao1215/sitecrawl/internal/model"
)

// RecordSink stores every record of one run in a CrawlDB.
// It does not own the database; Close leaves it open.
type RecordSink struct {
	db    *CrawlDB
	runID int64
}

// NewRecordSink returns a sink writing records under runID.
func NewRecordSink(db *CrawlDB, runID int64) *RecordSink {
	return &RecordSink{db: db, runID: runID}
}

// Put stores record.
func (s *RecordSink) Put(ctx context.Context, record *model.ContentRecord) error {
	return s.db.InsertRecord(ctx, s.runID, record)
}

// Close is a no-op; the database is closed by its owner.
func (s *RecordSink) Close() error {
	return nil
}

// RunID returns the run the sink writes to.
func (s *RecordSink) RunID() int64 {
	return s.runID
}
