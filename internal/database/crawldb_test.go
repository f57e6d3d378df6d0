package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/sitecrawl/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *CrawlDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// newReport returns a started report for host.
func newReport(host string) *model.CrawlReport {
	r := model.NewCrawlReport("https://" + host + "/")
	r.Host = host
	return r
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, FileName)); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("Path() = %q", db.Path())
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		_, err := Open(filepath.Join(t.TempDir(), "missing"), Options{CreateIfNotExists: false})
		if err == nil {
			t.Error("expected error for missing database")
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		db, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		_ = db.Close()

		db, err = Open(dir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to reopen database: %v", err)
		}
		_ = db.Close()
	})
}

func TestRunLifecycle(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	report := newReport("example.org")
	runID, err := db.CreateRun(ctx, report)
	if err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}
	if runID <= 0 {
		t.Fatalf("CreateRun() id = %d", runID)
	}
	report.RunID = runID

	runs, err := db.ListRuns(ctx, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Status != "running" || !runs[0].FinishedAt.IsZero() {
		t.Fatalf("runs = %+v, want one running run", runs)
	}

	report.Stats = model.CrawlStats{PagesProcessed: 3, Visited: 4, RecordsProduced: 3, Denied: 1, FetchFailures: 1}
	report.PerformedSteps = []string{"prepare", "crawl", "finalize"}
	report.AddFailure(model.Failure{URL: "https://example.org/x", Kind: "fetch_failure", Message: "404"})
	report.Finish()
	if err := db.FinishRun(ctx, report); err != nil {
		t.Fatalf("FinishRun() error = %v", err)
	}

	runs, err = db.ListRuns(ctx, "example.org", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
	run := runs[0]
	if run.Status != "complete" || run.RecordsProduced != 3 || run.Visited != 4 || run.Denied != 1 || run.Failed != 1 {
		t.Errorf("run = %+v", run)
	}
	if run.FinishedAt.IsZero() || run.StartedAt.IsZero() {
		t.Errorf("timestamps not stored: %+v", run)
	}

	stored, err := db.GetRunReport(ctx, runID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Seed != report.Seed || len(stored.Failures) != 1 || len(stored.PerformedSteps) != 3 {
		t.Errorf("stored report = %+v", stored)
	}
}

func TestFinishRunUnknownID(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	report := newReport("example.org")
	report.RunID = 42
	report.Finish()

	if err := db.FinishRun(context.Background(), report); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
	if _, err := db.GetRunReport(context.Background(), 42); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestListRunsFilterAndLimit(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	for _, host := range []string{"a.example", "b.example", "a.example", "a.example"} {
		if _, err := db.CreateRun(ctx, newReport(host)); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := db.ListRuns(ctx, "a.example", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	if runs[0].ID <= runs[1].ID {
		t.Errorf("runs not ordered newest first: %d, %d", runs[0].ID, runs[1].ID)
	}
	for _, r := range runs {
		if r.Host != "a.example" {
			t.Errorf("unexpected host %q", r.Host)
		}
	}
}

func TestRecordSink(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	runID, err := db.CreateRun(ctx, newReport("example.org"))
	if err != nil {
		t.Fatal(err)
	}
	sink := NewRecordSink(db, runID)
	if sink.RunID() != runID {
		t.Errorf("RunID() = %d, want %d", sink.RunID(), runID)
	}

	fetched := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	records := []*model.ContentRecord{
		{
			SourceURL:       "https://example.org/",
			SourceKind:      model.SourceKindHTML,
			Title:           "Home",
			RawText:         "H1: Welcome\n\nHello there friend",
			CleanedText:     "H1: Welcome Hello there friend",
			DiscoveredLinks: []string{"https://example.org/about"},
			ContentType:     "text/html",
			FetchedAt:       fetched,
		},
		{
			SourceURL:       "https://example.org/doc.pdf",
			SourceKind:      model.SourceKindPDF,
			Title:           "doc.pdf",
			RawText:         "pdf text",
			CleanedText:     "pdf text",
			DiscoveredLinks: []string{},
			FetchedAt:       fetched,
		},
	}
	for _, r := range records {
		if err := sink.Put(ctx, r); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetRunRecords(ctx, runID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("records = %d, want 2", len(got))
	}

	home := got[0]
	if home.Record.SourceURL != "https://example.org/" || home.Record.SourceKind != model.SourceKindHTML {
		t.Errorf("home = %+v", home.Record)
	}
	if len(home.Record.DiscoveredLinks) != 1 || home.Record.DiscoveredLinks[0] != "https://example.org/about" {
		t.Errorf("links = %v", home.Record.DiscoveredLinks)
	}
	if !home.Record.FetchedAt.Equal(fetched) {
		t.Errorf("FetchedAt = %v, want %v", home.Record.FetchedAt, fetched)
	}
	if home.WordCount != 5 || home.ContentHash != records[0].ContentHash() {
		t.Errorf("WordCount = %d, ContentHash = %q", home.WordCount, home.ContentHash)
	}
	if got[1].Record.SourceKind != model.SourceKindPDF {
		t.Errorf("second record kind = %q", got[1].Record.SourceKind)
	}

	count, err := db.CountRecordsByHash(ctx, records[1].ContentHash())
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("CountRecordsByHash() = %d, want 1", count)
	}
}

func TestInsertRecordReplacesSameURL(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	runID, err := db.CreateRun(ctx, newReport("example.org"))
	if err != nil {
		t.Fatal(err)
	}

	for _, title := range []string{"first", "second"} {
		r := &model.ContentRecord{SourceURL: "https://example.org/", SourceKind: model.SourceKindHTML, Title: title}
		if err := db.InsertRecord(ctx, runID, r); err != nil {
			t.Fatal(err)
		}
	}

	got, err := db.GetRunRecords(ctx, runID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Record.Title != "second" {
		t.Errorf("records = %+v", got)
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		input string
		zero  bool
	}{
		{"2025-01-02T03:04:05.123456789Z", false},
		{"2025-01-02T03:04:05Z", false},
		{"2025-01-02 03:04:05", false},
		{"", true},
		{"not a time", true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			t.Parallel()
			if got := parseTimestamp(tc.input); got.IsZero() != tc.zero {
				t.Errorf("parseTimestamp(%q) = %v", tc.input, got)
			}
		})
	}
}
