package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cnvpilot/internal/config"
	"cnvpilot/internal/discover"
	"cnvpilot/internal/logging"
)

// Visualizer is invoked once after all samples are processed.
type Visualizer interface {
	Render(ctx context.Context, samples []discover.Sample) error
}

// Orchestrator is the top-level driver: preflight validation, sample
// discovery, the sequential per-sample loop, failure aggregation, and the
// cohort post-processing hook.
//
// The loop is deliberately sequential. All parallelism is delegated to the
// external tool through the processes hint, so running samples concurrently
// would oversubscribe the host.
type Orchestrator struct {
	Config     *config.Config
	Runner     *Runner
	Visualizer Visualizer // optional

	log *slog.Logger
}

// NewOrchestrator wires the driver from a validated config.
func NewOrchestrator(cfg *config.Config, runner *Runner, vis Visualizer) *Orchestrator {
	return &Orchestrator{
		Config:     cfg,
		Runner:     runner,
		Visualizer: vis,
		log:        logging.New("orchestrate"),
	}
}

// Report aggregates the cohort run.
type Report struct {
	Samples   []*RunState
	Failures  []*StageError
	Processed int
}

// Run executes the whole cohort. It returns an error only for fatal
// configuration problems; per-sample stage failures are recorded in the
// report and logged, and processing continues with the next sample.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	if err := o.Config.Validate(); err != nil {
		return nil, err
	}

	samples, err := discover.Samples(o.Config.BamDir, o.Config.BamPattern)
	if err != nil {
		return nil, &config.Error{Field: "bam_dir", Reason: err.Error()}
	}
	o.log.Info("discovered samples", "count", len(samples), "pattern", o.Config.BamPattern)

	report := &Report{}
	for _, s := range samples {
		o.log.Info("processing sample", "sample", s.ID, "bam", s.Bam)
		state, err := o.Runner.RunSample(ctx, s)
		if state != nil {
			report.Samples = append(report.Samples, state)
		}
		report.Processed++
		if err != nil {
			// Fault isolation: record and move on to the next sample.
			o.log.Error("sample failed", "sample", s.ID, "error", err)
			var serr *StageError
			if !errors.As(err, &serr) {
				serr = &StageError{Sample: s.ID, Err: err}
			}
			report.Failures = append(report.Failures, serr)
			continue
		}
		o.log.Info("sample done", "sample", s.ID, "status", state.Status)
	}

	if o.Visualizer != nil {
		if err := o.Visualizer.Render(ctx, samples); err != nil {
			o.log.Error("cohort visualization failed", "error", err)
		}
	}

	o.log.Info("cohort run complete",
		"processed", report.Processed, "failures", len(report.Failures))
	return report, nil
}

// Summary renders a short human-readable run summary.
func (r *Report) Summary() string {
	done := 0
	for _, s := range r.Samples {
		if s.Status == StatusCompleted {
			done++
		}
	}
	return fmt.Sprintf("%d samples processed, %d completed, %d failures",
		r.Processed, done, len(r.Failures))
}
