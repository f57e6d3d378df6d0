package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nao1215/sitecrawl/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, with each step receiving the accumulated
// report from previous steps.
type Step interface {
	// Do executes the pipeline step.
	// It receives the context for cancellation, and the report to modify.
	// Returns an error if the step fails critically; per-URL errors
	// are recorded in the report and do not fail the step.
	Do(ctx context.Context, report *model.CrawlReport) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
// It maintains a list of steps and executes them in order.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// finalSteps run after steps regardless of their outcome.
	finalSteps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError determines whether to continue executing steps
	// after one fails. If false, the pipeline stops on first error.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, slog.Default is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue execution
// even when a step fails. The error of the failed step is still recorded
// in the report.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps:      make([]Step, 0),
		finalSteps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// AddFinalStep appends a step that runs after all regular steps, even when
// one of them failed or the context was cancelled.
func (p *Pipeline) AddFinalStep(step Step) {
	p.finalSteps = append(p.finalSteps, step)
}

// Execute runs all pipeline steps in sequence, then the final steps.
//
// The context is checked before each regular step. When it is done the
// report is marked cancelled and the remaining regular steps are skipped.
// Final steps run with a context that is never cancelled.
//
// Returns the first step error (or the context error) when continueOnError
// is false, joined with any final step errors.
func (p *Pipeline) Execute(ctx context.Context, report *model.CrawlReport) error {
	err := p.run(ctx, report)
	if finalErr := p.finalize(context.WithoutCancel(ctx), report); finalErr != nil {
		return errors.Join(err, finalErr)
	}
	return err
}

// run executes the regular steps.
func (p *Pipeline) run(ctx context.Context, report *model.CrawlReport) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", ctx.Err(),
			)
			report.Cancelled = true
			return ctx.Err()
		default:
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"seed", report.Seed,
		)

		if err := step.Do(ctx, report); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"seed", report.Seed,
				"error", err,
			)

			report.SetError(err)

			if !p.continueOnError {
				report.PerformedSteps = append(report.PerformedSteps, step.Name())
				return err
			}
		} else {
			p.logger.Debug("step completed",
				"step", step.Name(),
				"seed", report.Seed,
			)
		}

		report.PerformedSteps = append(report.PerformedSteps, step.Name())
	}

	return nil
}

// finalize executes every final step and joins their errors.
func (p *Pipeline) finalize(ctx context.Context, report *model.CrawlReport) error {
	var errs []error
	for _, step := range p.finalSteps {
		report.PerformedSteps = append(report.PerformedSteps, step.Name())
		if err := step.Do(ctx, report); err != nil {
			p.logger.Error("final step failed",
				"step", step.Name(),
				"seed", report.Seed,
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StepCount returns the number of regular and final steps.
func (p *Pipeline) StepCount() int {
	return len(p.steps) + len(p.finalSteps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, 0, p.StepCount())
	for _, step := range p.steps {
		names = append(names, step.Name())
	}
	for _, step := range p.finalSteps {
		names = append(names, step.Name())
	}
	return names
}
