package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/sitecrawl/internal/config"
	"github.com/nao1215/sitecrawl/internal/database"
	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/report"
	"github.com/spf13/cobra"
)

// defaultHistoryLimit is how many runs history lists unless --limit is given.
const defaultHistoryLimit = 20

// historyDateFormat is used for timestamps in history listings.
const historyDateFormat = "2006-01-02 15:04:05"

// NewHistoryCmd creates the history command.
// This command shows past runs stored in the database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [host]",
		Short: "Show past crawl runs",
		Long: `History lists the crawl runs stored in the database, newest first.

Give a host to list only the runs of that site. Use --run to show the
report of one run together with the records it produced. The Seen column
counts the stored records with the same text across all runs, which makes
pages that did not change between runs easy to spot.

Examples:
  # List the latest runs
  sitecrawl history

  # List the runs of one site
  sitecrawl history docs.example.org

  # Show run 12 and its records
  sitecrawl history --run 12

  # Output the run list as JSON
  sitecrawl history --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().Int64P("run", "i", 0,
		"Show the report and records of the run with this ID")
	cmd.Flags().IntP("limit", "n", defaultHistoryLimit,
		"Maximum number of runs to list (0 = all)")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output the run report in Markdown format (with --run)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	runID, err := cmd.Flags().GetInt64("run")
	if err != nil {
		return err
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}

	// Validate flags before opening the database
	if jsonOutput && markdownOutput {
		return config.ErrConflictingReportFormats
	}
	if runID < 0 {
		return fmt.Errorf("invalid run ID: %d", runID)
	}
	if limit < 0 {
		return fmt.Errorf("invalid limit: %d", limit)
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	if runID > 0 {
		return showRun(ctx, db, out, runID, jsonOutput, markdownOutput)
	}

	var host string
	if len(args) > 0 {
		host = strings.ToLower(args[0])
	}
	return listRuns(ctx, db, out, host, limit, jsonOutput)
}

// historyEntry is one run in the JSON run list.
type historyEntry struct {
	ID              int64     `json:"id"`
	Seed            string    `json:"seed"`
	Host            string    `json:"host"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	Status          string    `json:"status"`
	PagesProcessed  int       `json:"pages_processed"`
	RecordsProduced int       `json:"records_produced"`
	Visited         int       `json:"visited"`
	Denied          int       `json:"denied"`
	Failed          int       `json:"failed"`
}

// listRuns prints the stored runs, newest first.
func listRuns(ctx context.Context, db *database.CrawlDB, out io.Writer, host string, limit int, jsonOutput bool) error {
	runs, err := db.ListRuns(ctx, host, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if jsonOutput {
		entries := make([]historyEntry, 0, len(runs))
		for _, r := range runs {
			entries = append(entries, historyEntry{
				ID:              r.ID,
				Seed:            r.Seed,
				Host:            r.Host,
				StartedAt:       r.StartedAt,
				FinishedAt:      r.FinishedAt,
				Status:          r.Status,
				PagesProcessed:  r.PagesProcessed,
				RecordsProduced: r.RecordsProduced,
				Visited:         r.Visited,
				Denied:          r.Denied,
				Failed:          r.Failed,
			})
		}
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(entries)
	}

	if len(runs) == 0 {
		if host != "" {
			fmt.Fprintf(out, "No runs found for %s\n", host)
		} else {
			fmt.Fprintln(out, "No runs found in the database.")
		}
		fmt.Fprintln(out, "\nUse 'sitecrawl crawl <seed-url>' to crawl a site.")
		return nil
	}

	fmt.Fprintf(out, "Crawl runs (%d):\n\n", len(runs))
	fmt.Fprintf(out, "  %-6s  %-19s  %-9s  %7s  %7s  %6s  %s\n",
		"ID", "Started", "Status", "Records", "Visited", "Failed", "Seed")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 90))
	for _, r := range runs {
		fmt.Fprintf(out, "  %-6d  %-19s  %-9s  %7d  %7d  %6d  %s\n",
			r.ID,
			r.StartedAt.Local().Format(historyDateFormat),
			r.Status,
			r.RecordsProduced,
			r.Visited,
			r.Failed,
			r.Seed,
		)
	}
	fmt.Fprintln(out, "\nUse 'sitecrawl history --run <id>' to see the report and records of a run.")

	return nil
}

// showRun prints the report of one run followed by its records.
func showRun(ctx context.Context, db *database.CrawlDB, out io.Writer, runID int64, jsonOutput, markdownOutput bool) error {
	runReport, err := db.GetRunReport(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to get run %d: %w", runID, err)
	}
	records, err := db.GetRunRecords(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to get records of run %d: %w", runID, err)
	}

	if jsonOutput {
		type storedRecordJSON struct {
			URL         string    `json:"url"`
			Kind        string    `json:"kind"`
			Title       string    `json:"title"`
			WordCount   int       `json:"word_count"`
			ContentHash string    `json:"content_hash"`
			FetchedAt   time.Time `json:"fetched_at"`
		}
		result := struct {
			Report  *model.CrawlReport `json:"report"`
			Records []storedRecordJSON `json:"records"`
		}{
			Report:  runReport,
			Records: make([]storedRecordJSON, 0, len(records)),
		}
		for _, sr := range records {
			result.Records = append(result.Records, storedRecordJSON{
				URL:         sr.Record.SourceURL,
				Kind:        string(sr.Record.SourceKind),
				Title:       sr.Record.Title,
				WordCount:   sr.WordCount,
				ContentHash: sr.ContentHash,
				FetchedAt:   sr.Record.FetchedAt,
			})
		}
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}

	var writer report.Writer
	if markdownOutput {
		writer = report.NewMarkdownWriter(out)
	} else {
		writer = report.NewSimpleWriter(out, report.WithVerbose(true))
	}
	if _, err := writer.Write(runReport); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nRecords (%d):\n\n", len(records))
	if len(records) == 0 {
		return nil
	}
	fmt.Fprintf(out, "  %-12s  %6s  %4s  %s\n", "Kind", "Words", "Seen", "URL")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 90))
	for _, sr := range records {
		seen, err := db.CountRecordsByHash(ctx, sr.ContentHash)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  %-12s  %6d  %4d  %s\n",
			sr.Record.SourceKind,
			sr.WordCount,
			seen,
			sr.Record.SourceURL,
		)
	}
	return nil
}
