package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"cnvpilot/internal/cnvkit"
	"cnvpilot/internal/discover"
	"cnvpilot/internal/logging"
	"cnvpilot/internal/resolve"
)

// Runner executes the fixed stage sequence for one sample:
// coverage → fix → segment → call → breaks/genemetrics.
//
// Every stage whose artifact already exists is skipped without re-invoking
// the external tool, so the whole pipeline can be re-run safely after a
// partial failure. A stage succeeds only if the subprocess exits zero AND the
// expected artifact exists afterwards.
type Runner struct {
	Tool      *cnvkit.Tool
	Reference string
	Resolver  resolve.Resolver
	WorkRoot  string

	log *slog.Logger
}

// NewRunner wires a stage runner. resolver may be resolve.None{}.
func NewRunner(tool *cnvkit.Tool, reference string, resolver resolve.Resolver, workRoot string) *Runner {
	return &Runner{
		Tool:      tool,
		Reference: reference,
		Resolver:  resolver,
		WorkRoot:  workRoot,
		log:       logging.New("runner"),
	}
}

// RunSample drives one sample through all stages. The returned RunState is
// always non-nil and already persisted. err is non-nil only for failures in
// the coverage, fix or segment stages, which abort the sample; a call-stage
// failure degrades to skipping metrics instead.
func (r *Runner) RunSample(ctx context.Context, s discover.Sample) (*RunState, error) {
	p := Paths{Dir: s.WorkDir(r.WorkRoot), ID: s.ID}
	if err := os.MkdirAll(p.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}

	state := NewRunState(s.ID)
	fail := func(serr *StageError) (*RunState, error) {
		state.Record(serr.Stage, "failed")
		state.Status = StatusFailed
		state.FailedStage = serr.Stage
		r.saveState(p.Dir, state)
		return state, serr
	}

	// Coverage. Target and antitarget region files are inputs to this run;
	// missing regions mean the reference-building step never ran here.
	for _, cov := range []struct{ regions, out string }{
		{p.TargetBed(), p.TargetCoverage()},
		{p.AntitargetBed(), p.AntitargetCoverage()},
	} {
		cov := cov
		if Exists(cov.out) {
			r.log.Info("coverage exists, skipping", "sample", s.ID, "artifact", cov.out)
			state.Record(StageCoverage, "skipped")
			continue
		}
		if !Exists(cov.regions) {
			return fail(&StageError{Sample: s.ID, Stage: StageCoverage, Artifact: cov.out,
				Err: fmt.Errorf("region file missing: %s", cov.regions)})
		}
		if serr := r.invoke(s.ID, StageCoverage, cov.out, func() error {
			return r.Tool.Coverage(ctx, s.Bam, cov.regions, cov.out)
		}); serr != nil {
			return fail(serr)
		}
		state.Record(StageCoverage, "completed")
	}

	// Fix. On a non-zero exit the primary attempt is retried exactly once
	// with GC/edge correction disabled, for references lacking the metadata
	// the correction needs. A second failure aborts the sample.
	if Exists(p.Ratio()) {
		r.log.Info("ratio exists, skipping fix", "sample", s.ID)
		state.Record(StageFix, "skipped")
	} else {
		err := r.Tool.Fix(ctx, p.TargetCoverage(), p.AntitargetCoverage(), r.Reference, p.Ratio(), false)
		if err != nil {
			r.log.Warn("fix failed, retrying without bias correction", "sample", s.ID, "error", err)
			state.Record(StageFix, "fallback")
			err = r.Tool.Fix(ctx, p.TargetCoverage(), p.AntitargetCoverage(), r.Reference, p.Ratio(), true)
		}
		if err != nil {
			return fail(&StageError{Sample: s.ID, Stage: StageFix, Artifact: p.Ratio(), Err: err})
		}
		if !Exists(p.Ratio()) {
			return fail(&StageError{Sample: s.ID, Stage: StageFix, Artifact: p.Ratio(),
				Err: fmt.Errorf("artifact missing after fix: %s", p.Ratio())})
		}
		state.Record(StageFix, "completed")
	}

	// Segment.
	if Exists(p.Segments()) {
		r.log.Info("segments exist, skipping", "sample", s.ID)
		state.Record(StageSegment, "skipped")
	} else if serr := r.invoke(s.ID, StageSegment, p.Segments(), func() error {
		return r.Tool.Segment(ctx, p.Ratio(), p.Segments())
	}); serr != nil {
		return fail(serr)
	} else {
		state.Record(StageSegment, "completed")
	}

	// Call. A resolver miss is a normal branch: the sample is called without
	// allele-fraction input. A call failure is logged, not fatal; downstream
	// metrics are gated on the called-segment artifact actually existing.
	vcf, err := r.Resolver.Resolve(s.ID)
	if err != nil {
		r.log.Warn("variant resolution error, calling without VCF", "sample", s.ID, "error", err)
		vcf = ""
	}
	state.VCF = vcf
	if vcf == "" {
		r.log.Info("no variant file for sample", "sample", s.ID)
	}

	if Exists(p.CalledSegments()) {
		r.log.Info("called segments exist, skipping call", "sample", s.ID)
		state.Record(StageCall, "skipped")
	} else if serr := r.invoke(s.ID, StageCall, p.CalledSegments(), func() error {
		return r.Tool.Call(ctx, p.Segments(), vcf, p.CalledSegments())
	}); serr != nil {
		r.log.Error("call failed, skipping metrics", "sample", s.ID, "error", serr)
		state.Record(StageCall, "failed")
	} else {
		state.Record(StageCall, "completed")
	}

	// Breaks and genemetrics, gated strictly on the called-segment artifact.
	// The two sub-steps are independent; either failure is logged without
	// affecting the other or the sample's terminal state beyond "incomplete".
	if !Exists(p.CalledSegments()) {
		state.Status = StatusSkippedDownstream
		r.saveState(p.Dir, state)
		return state, nil
	}

	if Exists(p.Breaks()) {
		state.Record(StageBreaks, "skipped")
	} else if serr := r.invoke(s.ID, StageBreaks, p.Breaks(), func() error {
		return r.Tool.Breaks(ctx, p.Ratio(), p.CalledSegments(), p.Breaks())
	}); serr != nil {
		r.log.Error("breaks failed", "sample", s.ID, "error", serr)
		state.Record(StageBreaks, "failed")
	} else {
		state.Record(StageBreaks, "completed")
	}

	if Exists(p.Genemetrics()) {
		state.Record(StageGenemetrics, "skipped")
	} else if serr := r.invoke(s.ID, StageGenemetrics, p.Genemetrics(), func() error {
		return r.Tool.Genemetrics(ctx, p.Ratio(), p.CalledSegments(), p.Genemetrics())
	}); serr != nil {
		r.log.Error("genemetrics failed", "sample", s.ID, "error", serr)
		state.Record(StageGenemetrics, "failed")
	} else {
		state.Record(StageGenemetrics, "completed")
	}

	state.Status = StatusCompleted
	r.saveState(p.Dir, state)
	return state, nil
}

// invoke runs one stage subprocess and applies the dual success check.
func (r *Runner) invoke(sampleID string, stage Stage, artifact string, run func() error) *StageError {
	if err := run(); err != nil {
		return &StageError{Sample: sampleID, Stage: stage, Artifact: artifact, Err: err}
	}
	if !Exists(artifact) {
		return &StageError{Sample: sampleID, Stage: stage, Artifact: artifact,
			Err: fmt.Errorf("artifact missing after %s: %s", stage, artifact)}
	}
	return nil
}

func (r *Runner) saveState(dir string, state *RunState) {
	if err := SaveState(dir, state); err != nil {
		r.log.Warn("persist state failed", "sample", state.Sample, "error", err)
	}
}
