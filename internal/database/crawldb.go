package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sitecrawl/internal/model"
)

// FileName is the name of the database file inside the database directory.
const FileName = "sitecrawl.db"

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("run not found")

// CrawlDB provides SQLite-based storage for crawl runs and their records.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run a crawl first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- One row per crawl run
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		seed TEXT NOT NULL,
		host TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		status TEXT NOT NULL DEFAULT 'running',
		pages_processed INTEGER DEFAULT 0,
		records_produced INTEGER DEFAULT 0,
		visited INTEGER DEFAULT 0,
		denied INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		report_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_host ON runs(host);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Content records stored during a run
	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id),
		url TEXT NOT NULL,
		kind TEXT NOT NULL,
		title TEXT,
		content_type TEXT,
		raw_text TEXT,
		cleaned_text TEXT,
		links TEXT,
		content_hash TEXT,
		word_count INTEGER,
		fetched_at DATETIME,
		UNIQUE(run_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_records_run ON records(run_id);
	CREATE INDEX IF NOT EXISTS idx_records_hash ON records(content_hash);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// CreateRun inserts a run in the "running" state and returns its ID.
func (cdb *CrawlDB) CreateRun(ctx context.Context, report *model.CrawlReport) (int64, error) {
	query := `
	INSERT INTO runs (seed, host, started_at, status)
	VALUES (?, ?, ?, 'running')
	`

	result, err := cdb.db.ExecContext(ctx, query,
		report.Seed,
		report.Host,
		formatTimestamp(report.StartedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create run: %w", err)
	}
	return result.LastInsertId()
}

// FinishRun stores the final state of the run report.RunID.
func (cdb *CrawlDB) FinishRun(ctx context.Context, report *model.CrawlReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	query := `
	UPDATE runs SET
		finished_at = ?,
		status = ?,
		pages_processed = ?,
		records_produced = ?,
		visited = ?,
		denied = ?,
		failed = ?,
		report_json = ?
	WHERE id = ?
	`

	result, err := cdb.db.ExecContext(ctx, query,
		formatTimestamp(report.FinishedAt),
		report.Status(),
		report.Stats.PagesProcessed,
		report.Stats.RecordsProduced,
		report.Stats.Visited,
		report.Stats.Denied,
		report.Stats.Failed(),
		string(reportJSON),
		report.RunID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %d", ErrRunNotFound, report.RunID)
	}
	return nil
}

// InsertRecord stores record under runID. A second record with the same
// URL in the same run replaces the first.
func (cdb *CrawlDB) InsertRecord(ctx context.Context, runID int64, record *model.ContentRecord) error {
	linksJSON, err := json.Marshal(record.DiscoveredLinks)
	if err != nil {
		return fmt.Errorf("failed to serialize links: %w", err)
	}

	query := `
	INSERT INTO records (run_id, url, kind, title, content_type, raw_text, cleaned_text, links, content_hash, word_count, fetched_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id, url) DO UPDATE SET
		kind = excluded.kind,
		title = excluded.title,
		content_type = excluded.content_type,
		raw_text = excluded.raw_text,
		cleaned_text = excluded.cleaned_text,
		links = excluded.links,
		content_hash = excluded.content_hash,
		word_count = excluded.word_count,
		fetched_at = excluded.fetched_at
	`

	_, err = cdb.db.ExecContext(ctx, query,
		runID,
		record.SourceURL,
		string(record.SourceKind),
		record.Title,
		record.ContentType,
		record.RawText,
		record.CleanedText,
		string(linksJSON),
		record.ContentHash(),
		record.WordCount(),
		formatTimestamp(record.FetchedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

// RunSummary is one row of the run history.
type RunSummary struct {
	// ID is the run identifier.
	ID int64

	// Seed is the seed URL of the run.
	Seed string

	// Host is the crawled host.
	Host string

	// StartedAt and FinishedAt bound the run. FinishedAt is zero for a
	// run that never finished.
	StartedAt  time.Time
	FinishedAt time.Time

	// Status is "running", "complete", "cancelled" or "error".
	Status string

	// PagesProcessed, RecordsProduced, Visited, Denied and Failed are the
	// final counters of the run.
	PagesProcessed  int
	RecordsProduced int
	Visited         int
	Denied          int
	Failed          int
}

// ListRuns returns the most recent runs first. host filters by host when
// not empty; limit caps the result when positive.
func (cdb *CrawlDB) ListRuns(ctx context.Context, host string, limit int) ([]RunSummary, error) {
	query := `
	SELECT id, seed, host, started_at, COALESCE(finished_at, ''), status,
		pages_processed, records_produced, visited, denied, failed
	FROM runs
	WHERE 1=1
	`
	args := make([]any, 0)

	if host != "" {
		query += " AND host = ?"
		args = append(args, host)
	}
	query += " ORDER BY id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var run RunSummary
		var started, finished string
		if err := rows.Scan(
			&run.ID,
			&run.Seed,
			&run.Host,
			&started,
			&finished,
			&run.Status,
			&run.PagesProcessed,
			&run.RecordsProduced,
			&run.Visited,
			&run.Denied,
			&run.Failed,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.StartedAt = parseTimestamp(started)
		run.FinishedAt = parseTimestamp(finished)
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// GetRunReport returns the stored report of a finished run.
func (cdb *CrawlDB) GetRunReport(ctx context.Context, runID int64) (*model.CrawlReport, error) {
	query := `SELECT COALESCE(report_json, '') FROM runs WHERE id = ?`

	var reportJSON string
	err := cdb.db.QueryRowContext(ctx, query, runID).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if reportJSON == "" {
		return nil, fmt.Errorf("run %d has not finished", runID)
	}

	var report model.CrawlReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// StoredRecord is a content record as kept in the database.
type StoredRecord struct {
	// ID is the record row ID.
	ID int64

	// RunID is the run that produced the record.
	RunID int64

	// Record is the content record.
	Record model.ContentRecord

	// ContentHash is the SHA3-256 digest of the cleaned text.
	ContentHash string

	// WordCount is the number of words in the cleaned text.
	WordCount int
}

// GetRunRecords returns the records of a run in insertion order.
func (cdb *CrawlDB) GetRunRecords(ctx context.Context, runID int64) ([]StoredRecord, error) {
	query := `
	SELECT id, run_id, url, kind, title, content_type, raw_text, cleaned_text, links, content_hash, word_count, fetched_at
	FROM records
	WHERE run_id = ?
	ORDER BY id
	`

	rows, err := cdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get records: %w", err)
	}
	defer rows.Close()

	var records []StoredRecord
	for rows.Next() {
		var sr StoredRecord
		var kind, linksJSON, fetched string
		if err := rows.Scan(
			&sr.ID,
			&sr.RunID,
			&sr.Record.SourceURL,
			&kind,
			&sr.Record.Title,
			&sr.Record.ContentType,
			&sr.Record.RawText,
			&sr.Record.CleanedText,
			&linksJSON,
			&sr.ContentHash,
			&sr.WordCount,
			&fetched,
		); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		sr.Record.SourceKind = model.SourceKind(kind)
		sr.Record.FetchedAt = parseTimestamp(fetched)
		if linksJSON != "" {
			if err := json.Unmarshal([]byte(linksJSON), &sr.Record.DiscoveredLinks); err != nil {
				return nil, fmt.Errorf("failed to parse links: %w", err)
			}
		}
		records = append(records, sr)
	}

	return records, rows.Err()
}

// CountRecordsByHash returns how many stored records carry contentHash.
// It is used to spot pages whose text was already seen in earlier runs.
func (cdb *CrawlDB) CountRecordsByHash(ctx context.Context, contentHash string) (int, error) {
	var count int
	err := cdb.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE content_hash = ?`, contentHash).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

// storageFormat is how timestamps are written.
const storageFormat = time.RFC3339Nano

// formatTimestamp formats t for storage. The zero time is stored as "".
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(storageFormat)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// It returns the zero time when no format matches.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
