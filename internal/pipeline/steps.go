package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nao1215/sitecrawl/internal/crawler"
	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/politeness"
	"github.com/nao1215/sitecrawl/internal/sink"
)

// Step names as recorded in CrawlReport.PerformedSteps.
const (
	StepPrepare  = "prepare"
	StepCrawl    = "crawl"
	StepFinalize = "finalize"
)

// Prober checks that the host of a URL accepts connections.
// *fetch.Client satisfies it.
type Prober interface {
	CheckReachable(ctx context.Context, rawURL string) error
}

// PolicyLoader loads the robots policy of the host of a URL.
// *politeness.Gate satisfies it.
type PolicyLoader interface {
	Policy(ctx context.Context, rawURL string) (*politeness.RobotsPolicy, error)
}

// RunStore records runs. *database.CrawlDB satisfies it.
type RunStore interface {
	CreateRun(ctx context.Context, report *model.CrawlReport) (int64, error)
	FinishRun(ctx context.Context, report *model.CrawlReport) error
}

// SinkOpener builds the sink of a run. It is called once, after the
// prepare step, so it can use the run ID and host of the report.
type SinkOpener func(report *model.CrawlReport) (sink.Sink, error)

// Outputs is the sink of one run, opened by CrawlStep and closed by
// FinalizeStep.
type Outputs struct {
	open SinkOpener

	mu     sync.Mutex
	sink   sink.Sink
	closed bool
}

// NewOutputs creates Outputs that open their sink with open.
func NewOutputs(open SinkOpener) *Outputs {
	return &Outputs{open: open}
}

// Open builds the sink on first call and returns it afterwards.
func (o *Outputs) Open(report *model.CrawlReport) (sink.Sink, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil, sink.ErrClosed
	}
	if o.sink != nil {
		return o.sink, nil
	}
	s, err := o.open(report)
	if err != nil {
		return nil, err
	}
	o.sink = s
	return s, nil
}

// Close closes the sink if it was opened. Later calls do nothing.
func (o *Outputs) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil
	}
	o.closed = true
	if o.sink == nil {
		return nil
	}
	return o.sink.Close()
}

// PrepareStep validates the seed and checks that the site can be crawled:
// the seed host must accept connections and, in strict robots mode,
// robots.txt must be retrievable. It also registers the run.
type PrepareStep struct {
	prober   Prober
	policies PolicyLoader
	store    RunStore
	logger   *slog.Logger
}

// PrepareStepOption configures a PrepareStep.
type PrepareStepOption func(*PrepareStep)

// WithProber enables the reachability probe of the seed host.
func WithProber(p Prober) PrepareStepOption {
	return func(s *PrepareStep) {
		s.prober = p
	}
}

// WithPolicyLoader loads robots.txt of the seed host during prepare.
func WithPolicyLoader(l PolicyLoader) PrepareStepOption {
	return func(s *PrepareStep) {
		s.policies = l
	}
}

// WithRunStore registers the run in store.
func WithRunStore(store RunStore) PrepareStepOption {
	return func(s *PrepareStep) {
		s.store = store
	}
}

// WithPrepareLogger sets a custom logger for the prepare step.
func WithPrepareLogger(logger *slog.Logger) PrepareStepOption {
	return func(s *PrepareStep) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewPrepareStep creates a new prepare step.
func NewPrepareStep(opts ...PrepareStepOption) *PrepareStep {
	s := &PrepareStep{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *PrepareStep) Name() string {
	return StepPrepare
}

// Do executes the prepare step. Every error it returns is fatal.
func (s *PrepareStep) Do(ctx context.Context, report *model.CrawlReport) error {
	scope, err := crawler.NewScope(report.Seed)
	if err != nil {
		return &crawler.CrawlError{Kind: crawler.FatalStartup, URL: report.Seed, Err: err}
	}
	report.Seed = scope.Seed()
	report.Host = scope.Host()

	if s.prober != nil {
		if err := s.prober.CheckReachable(ctx, report.Seed); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return &crawler.CrawlError{Kind: crawler.FatalStartup, URL: report.Seed, Err: err}
		}
		s.logger.Debug("seed host reachable", "host", report.Host)
	}

	if s.policies != nil {
		policy, err := s.policies.Policy(ctx, report.Seed)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return &crawler.CrawlError{Kind: crawler.FatalStartup, URL: report.Seed, Err: err}
		}
		s.logger.Info("robots policy loaded", "host", report.Host, "source", policy.Source())
	}

	if s.store != nil {
		id, err := s.store.CreateRun(ctx, report)
		if err != nil {
			return fmt.Errorf("failed to register run: %w", err)
		}
		report.RunID = id
		s.logger.Debug("run registered", "run_id", id)
	}

	return nil
}

// CrawlStep crawls the site of the report seed and stores the records in
// the run outputs.
type CrawlStep struct {
	fetcher crawler.Fetcher
	outputs *Outputs
	options []crawler.SpiderOption
}

// NewCrawlStep creates a crawl step. The spider options configure the
// spider built for each run.
func NewCrawlStep(fetcher crawler.Fetcher, outputs *Outputs, opts ...crawler.SpiderOption) *CrawlStep {
	return &CrawlStep{
		fetcher: fetcher,
		outputs: outputs,
		options: opts,
	}
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return StepCrawl
}

// Do executes the crawl. Per-URL failures end up in report.Failures and
// the counters in report.Stats. A cancelled crawl marks the report
// cancelled and is not an error.
func (s *CrawlStep) Do(ctx context.Context, report *model.CrawlReport) error {
	out, err := s.outputs.Open(report)
	if err != nil {
		return fmt.Errorf("failed to open outputs: %w", err)
	}

	opts := append([]crawler.SpiderOption{}, s.options...)
	opts = append(opts, crawler.WithFailureHandler(report.AddFailure))
	spider := crawler.NewSpider(s.fetcher, opts...)

	stats, err := spider.Crawl(ctx, report.Seed, out)
	if stats != nil {
		report.Stats = *stats
	}
	if err != nil {
		if !crawler.IsFatal(err) && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			report.Cancelled = true
			return nil
		}
		return err
	}
	return nil
}

// FinalizeStep closes the run outputs, marks the report finished and
// stores the final state of the run.
type FinalizeStep struct {
	outputs *Outputs
	store   RunStore
	logger  *slog.Logger
}

// FinalizeStepOption configures a FinalizeStep.
type FinalizeStepOption func(*FinalizeStep)

// WithFinalizeStore updates the run in store.
func WithFinalizeStore(store RunStore) FinalizeStepOption {
	return func(s *FinalizeStep) {
		s.store = store
	}
}

// WithFinalizeLogger sets a custom logger for the finalize step.
func WithFinalizeLogger(logger *slog.Logger) FinalizeStepOption {
	return func(s *FinalizeStep) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewFinalizeStep creates a finalize step for outputs.
func NewFinalizeStep(outputs *Outputs, opts ...FinalizeStepOption) *FinalizeStep {
	s := &FinalizeStep{
		outputs: outputs,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *FinalizeStep) Name() string {
	return StepFinalize
}

// Do closes the outputs and records the end of the run. Both happen even
// when the other fails.
func (s *FinalizeStep) Do(ctx context.Context, report *model.CrawlReport) error {
	var errs []error
	if s.outputs != nil {
		if err := s.outputs.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close outputs: %w", err))
		}
	}

	report.Finish()

	if s.store != nil && report.RunID > 0 {
		if err := s.store.FinishRun(ctx, report); err != nil {
			errs = append(errs, fmt.Errorf("failed to save run %d: %w", report.RunID, err))
		}
	}

	s.logger.Info("run finished",
		"seed", report.Seed,
		"status", report.Status(),
		"records", report.Stats.RecordsProduced,
		"visited", report.Stats.Visited,
		"duration", report.Duration(),
	)
	return errors.Join(errs...)
}
