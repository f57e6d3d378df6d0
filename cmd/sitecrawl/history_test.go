package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/sitecrawl/internal/database"
	"github.com/nao1215/sitecrawl/internal/model"
)

// seedDatabase stores one finished run with two records, the second of
// which repeats the text of the first.
func seedDatabase(t *testing.T) (*database.CrawlDB, int64) {
	t.Helper()

	db, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	r := model.NewCrawlReport("https://docs.example.org/")
	r.Host = "docs.example.org"
	id, err := db.CreateRun(ctx, r)
	if err != nil {
		t.Fatal(err)
	}
	r.RunID = id

	for _, u := range []string{"https://docs.example.org/", "https://docs.example.org/copy"} {
		rec := &model.ContentRecord{
			SourceURL:       u,
			SourceKind:      model.SourceKindHTML,
			Title:           "Docs",
			RawText:         "Same words here",
			CleanedText:     "Same words here",
			DiscoveredLinks: []string{},
			ContentType:     "text/html",
			FetchedAt:       time.Now(),
		}
		if err := db.InsertRecord(ctx, id, rec); err != nil {
			t.Fatal(err)
		}
	}

	r.Stats = model.CrawlStats{PagesProcessed: 2, Visited: 2, RecordsProduced: 2, HTMLRecords: 2}
	r.PerformedSteps = []string{"prepare", "crawl", "finalize"}
	r.Finish()
	if err := db.FinishRun(ctx, r); err != nil {
		t.Fatal(err)
	}
	return db, id
}

func TestNewHistoryCmd(t *testing.T) {
	t.Parallel()

	cmd := NewHistoryCmd()
	if cmd.Name() != "history" {
		t.Errorf("expected name 'history', got %q", cmd.Name())
	}
	for _, name := range []string{"run", "limit", "db-dir", "json", "markdown"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected %s flag", name)
		}
	}
	if err := cmd.Args(cmd, []string{"a", "b"}); err == nil {
		t.Error("expected error with two hosts")
	}
}

func TestListRuns(t *testing.T) {
	t.Parallel()

	t.Run("lists stored runs", func(t *testing.T) {
		t.Parallel()

		db, _ := seedDatabase(t)
		var out bytes.Buffer
		if err := listRuns(context.Background(), db, &out, "", defaultHistoryLimit, false); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out.String(), "Crawl runs (1)") {
			t.Errorf("unexpected output:\n%s", out.String())
		}
		if !strings.Contains(out.String(), "https://docs.example.org/") {
			t.Errorf("seed missing from output:\n%s", out.String())
		}
		if !strings.Contains(out.String(), "complete") {
			t.Errorf("status missing from output:\n%s", out.String())
		}
	})

	t.Run("filters by host", func(t *testing.T) {
		t.Parallel()

		db, _ := seedDatabase(t)
		var out bytes.Buffer
		if err := listRuns(context.Background(), db, &out, "other.example.org", 0, false); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out.String(), "No runs found for other.example.org") {
			t.Errorf("unexpected output:\n%s", out.String())
		}
	})

	t.Run("outputs JSON", func(t *testing.T) {
		t.Parallel()

		db, id := seedDatabase(t)
		var out bytes.Buffer
		if err := listRuns(context.Background(), db, &out, "docs.example.org", 0, true); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var entries []historyEntry
		if err := json.Unmarshal(out.Bytes(), &entries); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(entries) != 1 || entries[0].ID != id {
			t.Fatalf("entries = %+v", entries)
		}
		if entries[0].RecordsProduced != 2 {
			t.Errorf("RecordsProduced = %d, want 2", entries[0].RecordsProduced)
		}
	})
}

func TestShowRun(t *testing.T) {
	t.Parallel()

	t.Run("prints report and records", func(t *testing.T) {
		t.Parallel()

		db, id := seedDatabase(t)
		var out bytes.Buffer
		if err := showRun(context.Background(), db, &out, id, false, false); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := out.String()
		if !strings.Contains(got, "SITECRAWL REPORT") {
			t.Errorf("report missing:\n%s", got)
		}
		if !strings.Contains(got, "Records (2)") {
			t.Errorf("record count missing:\n%s", got)
		}
		if !strings.Contains(got, "https://docs.example.org/copy") {
			t.Errorf("record URL missing:\n%s", got)
		}
	})

	t.Run("outputs JSON", func(t *testing.T) {
		t.Parallel()

		db, id := seedDatabase(t)
		var out bytes.Buffer
		if err := showRun(context.Background(), db, &out, id, true, false); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var decoded struct {
			Report  model.CrawlReport `json:"report"`
			Records []struct {
				URL       string `json:"url"`
				WordCount int    `json:"word_count"`
			} `json:"records"`
		}
		if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.Report.Seed != "https://docs.example.org/" {
			t.Errorf("Seed = %q", decoded.Report.Seed)
		}
		if len(decoded.Records) != 2 || decoded.Records[0].WordCount != 3 {
			t.Errorf("Records = %+v", decoded.Records)
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		t.Parallel()

		db, _ := seedDatabase(t)
		if err := showRun(context.Background(), db, io.Discard, 999, false, false); err == nil {
			t.Error("expected error for unknown run")
		}
	})
}
