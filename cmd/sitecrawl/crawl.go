package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/nao1215/sitecrawl/internal/config"
	"github.com/nao1215/sitecrawl/internal/crawler"
	"github.com/nao1215/sitecrawl/internal/database"
	"github.com/nao1215/sitecrawl/internal/extract"
	"github.com/nao1215/sitecrawl/internal/fetch"
	"github.com/nao1215/sitecrawl/internal/log"
	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/pipeline"
	"github.com/nao1215/sitecrawl/internal/politeness"
	"github.com/nao1215/sitecrawl/internal/report"
	"github.com/nao1215/sitecrawl/internal/sink"
	"github.com/spf13/cobra"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <seed-url>",
		Short: "Crawl a site and extract its content",
		Long: `Crawl discovers every page reachable from the seed URL on the same host,
extracts the title and main text of HTML pages and the text of linked PDF
documents, and stores one content record per resource.

The crawl honours robots.txt and waits between requests (--delay plus a
random jitter). A larger Crawl-delay in robots.txt takes precedence.

Records are written to --output-dir as one text file each, to --json-file
as a single JSON array, and to the run history database unless --no-db is
given. A summary report is printed when the crawl ends. Press Ctrl+C to stop
early: records fetched so far are kept and a partial report is printed.

Examples:
  # Crawl a site with default settings
  sitecrawl crawl https://docs.example.org/

  # Stop after 50 pages, use 4 workers
  sitecrawl crawl -p 50 -w 4 https://docs.example.org/

  # Abort if robots.txt cannot be retrieved
  sitecrawl crawl --robots-mode strict https://docs.example.org/

  # Write all records to one JSON file and print a Markdown report
  sitecrawl crawl --json-file records.json --markdown https://docs.example.org/

Configuration file (.sitecrawl) example:
  defaults:
    delay: 2s
  sites:
    docs.example.org:
      cookie: "session_id=abc123"
      ignorePatterns:
        - "/archive/*"
      contentSelectors:
        - "article.doc"`,
		Args: cobra.ExactArgs(1),
		RunE: runCrawlCmd,
	}

	// Request flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().StringP(config.OptionUserAgent, "u", config.DefaultUserAgent,
		"User-Agent header and robots.txt agent name")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum response body size in bytes")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy address (e.g., 127.0.0.1:1080)")
	cmd.Flags().String("cookie", "",
		"Cookie sent with every request")
	cmd.Flags().StringToString("header", nil,
		"Extra request header as name=value (repeatable)")

	// Crawl behavior flags
	cmd.Flags().IntP(config.OptionMaxPages, "p", config.DefaultMaxPages,
		"Maximum number of resources to fetch (0 = unbounded)")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of concurrent workers")
	cmd.Flags().DurationP(config.OptionDelay, "d", config.DefaultDelay,
		"Minimum delay between requests")
	cmd.Flags().Duration("jitter-min", config.DefaultJitterMin,
		"Minimum random jitter added to the delay")
	cmd.Flags().Duration("jitter-max", config.DefaultJitterMax,
		"Maximum random jitter added to the delay")
	cmd.Flags().String(config.OptionRobotsMode, config.DefaultRobotsMode,
		"Behavior when robots.txt is unavailable: lenient or strict")
	cmd.Flags().StringSlice("ignore", nil,
		"URL path patterns to skip (glob, repeatable)")
	cmd.Flags().StringSlice("follow", nil,
		"Only crawl URL paths matching these patterns (glob, repeatable)")
	cmd.Flags().StringSlice("selector", nil,
		"CSS selector of the main content region (repeatable)")
	cmd.Flags().Bool("skip-reachability-check", false,
		"Do not probe the seed host before crawling")

	// Output flags
	cmd.Flags().StringP("output-dir", "o", config.DefaultOutputDir,
		"Directory for one text file per record (empty to disable)")
	cmd.Flags().Bool("save-html", false,
		"Also save the markup of every HTML page under <output-dir>/html")
	cmd.Flags().String("json-file", "",
		"Write all records to this JSON file")
	cmd.Flags().Bool("no-db", false,
		"Do not save the run to the history database")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .sitecrawl in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("report", "r", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("log-json", false,
		"Write logs as JSON")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewLogger(cmd.ErrOrStderr(), cfg.Verbose, cfg.LogJSON)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, logger, cmd.OutOrStdout())
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags and the
// configuration file. Flags set on the command line win over site settings.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString(config.OptionUserAgent); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.Cookie, err = flags.GetString("cookie"); err != nil {
		return nil, err
	}
	if cfg.Headers, err = flags.GetStringToString("header"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt(config.OptionMaxPages); err != nil {
		return nil, err
	}
	if cfg.Workers, err = flags.GetInt("workers"); err != nil {
		return nil, err
	}
	if cfg.Delay, err = flags.GetDuration(config.OptionDelay); err != nil {
		return nil, err
	}
	if cfg.JitterMin, err = flags.GetDuration("jitter-min"); err != nil {
		return nil, err
	}
	if cfg.JitterMax, err = flags.GetDuration("jitter-max"); err != nil {
		return nil, err
	}
	if cfg.RobotsMode, err = flags.GetString(config.OptionRobotsMode); err != nil {
		return nil, err
	}
	if cfg.IgnorePatterns, err = flags.GetStringSlice("ignore"); err != nil {
		return nil, err
	}
	if cfg.FollowPatterns, err = flags.GetStringSlice("follow"); err != nil {
		return nil, err
	}
	if cfg.ContentSelectors, err = flags.GetStringSlice("selector"); err != nil {
		return nil, err
	}
	if cfg.SkipReachabilityCheck, err = flags.GetBool("skip-reachability-check"); err != nil {
		return nil, err
	}
	if cfg.OutputDir, err = flags.GetString("output-dir"); err != nil {
		return nil, err
	}
	if cfg.SaveHTML, err = flags.GetBool("save-html"); err != nil {
		return nil, err
	}
	if cfg.JSONFile, err = flags.GetString("json-file"); err != nil {
		return nil, err
	}
	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB
	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if dbDir != "" {
		cfg.DBDir = dbDir
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("report"); err != nil {
		return nil, err
	}
	if cfg.LogJSON, err = flags.GetBool("log-json"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	if len(args) > 0 {
		cfg.Seed = args[0]
	}

	// If the user explicitly specified a config file path, error if not found.
	// Otherwise silently run without one.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{
			Sites: make(map[string]config.SiteConfig),
		}
	}

	// An invalid seed is reported by the prepare step.
	if scope, err := crawler.NewScope(cfg.Seed); err == nil {
		cfg.ApplySite(cfg.SiteConfigs.GetSiteConfig(scope.Host()), flags.Changed)
	}

	return cfg, nil
}

// runCrawl performs one crawl run and writes its report.
// A cancelled run is not an error: its partial report is written and nil
// is returned.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout io.Writer) error {
	logger.Info("starting crawl",
		"seed", cfg.Seed,
		"workers", cfg.Workers,
		"maxPages", cfg.MaxPages,
		"delay", cfg.Delay,
		"robotsMode", cfg.RobotsMode,
		"saveToDB", cfg.SaveToDB,
	)

	var db *database.CrawlDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Debug("database opened", "path", db.Path())
	}

	clientOpts := []fetch.Option{
		fetch.WithTimeout(cfg.Timeout),
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithHeaders(cfg.Headers),
		fetch.WithCookie(cfg.Cookie),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
		fetch.WithLogger(logger),
	}
	if cfg.ProxyAddress != "" {
		clientOpts = append(clientOpts, fetch.WithProxy(cfg.ProxyAddress))
	}
	client, err := fetch.New(clientOpts...)
	if err != nil {
		return fmt.Errorf("failed to create HTTP client: %w", err)
	}
	// Pages are fetched without following redirects; the crawler queues
	// redirect targets itself.
	pageClient, err := fetch.New(append(clientOpts, fetch.WithoutRedirects())...)
	if err != nil {
		return fmt.Errorf("failed to create HTTP client: %w", err)
	}

	gate := politeness.NewGate(client,
		politeness.WithUserAgent(cfg.UserAgent),
		politeness.WithMode(cfg.Mode()),
		politeness.WithDelay(cfg.Delay),
		politeness.WithJitter(cfg.JitterMin, cfg.JitterMax),
		politeness.WithLogger(logger),
	)

	p := createPipeline(cfg, client, pageClient, gate, db, logger)
	crawlReport := model.NewCrawlReport(cfg.Seed)
	runErr := p.Execute(ctx, crawlReport)

	if err := outputReport(cfg, crawlReport, stdout); err != nil {
		return errors.Join(runErr, fmt.Errorf("failed to write report: %w", err))
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// createPipeline builds the prepare, crawl and finalize steps of a run.
// client probes the seed host; pageClient fetches pages and documents.
func createPipeline(cfg *config.Config, client, pageClient *fetch.Client, gate *politeness.Gate, db *database.CrawlDB, logger *slog.Logger) *pipeline.Pipeline {
	outputs := pipeline.NewOutputs(func(r *model.CrawlReport) (sink.Sink, error) {
		return openSinks(cfg, db, r, logger)
	})

	prepareOpts := []pipeline.PrepareStepOption{
		pipeline.WithPolicyLoader(gate),
		pipeline.WithPrepareLogger(logger),
	}
	finalizeOpts := []pipeline.FinalizeStepOption{
		pipeline.WithFinalizeLogger(logger),
	}
	if !cfg.SkipReachabilityCheck {
		prepareOpts = append(prepareOpts, pipeline.WithProber(client))
	}
	if db != nil {
		prepareOpts = append(prepareOpts, pipeline.WithRunStore(db))
		finalizeOpts = append(finalizeOpts, pipeline.WithFinalizeStore(db))
	}

	crawlStep := pipeline.NewCrawlStep(pageClient, outputs,
		crawler.WithGate(gate),
		crawler.WithWorkers(cfg.Workers),
		crawler.WithMaxPages(cfg.MaxPages),
		crawler.WithPatterns(cfg.IgnorePatterns, cfg.FollowPatterns),
		crawler.WithPageExtractor(extract.NewHTMLExtractor(
			extract.WithContentSelectors(cfg.ContentSelectors...),
		)),
		crawler.WithDocumentExtractor(extract.NewPDFExtractor(
			extract.WithPDFLogger(logger),
		)),
		crawler.WithLogger(logger),
	)

	p := pipeline.New(pipeline.WithLogger(logger))
	p.AddSteps(pipeline.NewPrepareStep(prepareOpts...), crawlStep)
	p.AddFinalStep(pipeline.NewFinalizeStep(outputs, finalizeOpts...))
	return p
}

// openSinks creates the configured sinks for a registered run.
func openSinks(cfg *config.Config, db *database.CrawlDB, r *model.CrawlReport, logger *slog.Logger) (sink.Sink, error) {
	sinks := make([]sink.Sink, 0, 3)
	if cfg.OutputDir != "" {
		fs, err := sink.NewFileSink(cfg.OutputDir,
			sink.WithHTMLDir(cfg.HTMLDir()),
			sink.WithFileLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, fs)
	}
	if cfg.JSONFile != "" {
		as, err := sink.NewAggregateSink(cfg.JSONFile)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, as)
	}
	if db != nil && r.RunID > 0 {
		sinks = append(sinks, database.NewRecordSink(db, r.RunID))
	}
	return sink.NewMultiSink(sinks...), nil
}

// outputReport writes the crawl report in the selected format to the
// report file or stdout.
func outputReport(cfg *config.Config, crawlReport *model.CrawlReport, stdout io.Writer) error {
	output := stdout
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	var writer report.Writer
	switch {
	case cfg.JSONReport:
		writer = report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		writer = report.NewMarkdownWriter(output)
	default:
		writer = report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
	_, err := writer.Write(crawlReport)
	return err
}
