// Package visualize drives cohort-level CNVkit plot rendering after all
// samples are processed.
package visualize

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"cnvpilot/internal/cnvkit"
	"cnvpilot/internal/discover"
	"cnvpilot/internal/logging"
	"cnvpilot/internal/pipeline"
)

// Visualizer renders the cohort heatmaps and the per-sample scatter and
// diagram plots. Every render call is independent: a failure is logged and
// the remaining renders proceed. Existing plot artifacts are not regenerated.
type Visualizer struct {
	Tool        *cnvkit.Tool
	WorkRoot    string
	PlotsDir    string
	Chromosomes []string

	// RenderWorkers bounds concurrent render calls. Renders are independent
	// single-threaded processes, unlike the pipeline stages which already
	// parallelize internally. Zero means sequential.
	RenderWorkers int

	log *slog.Logger
}

// New wires a cohort visualizer.
func New(tool *cnvkit.Tool, workRoot, plotsDir string, chromosomes []string) *Visualizer {
	return &Visualizer{
		Tool:        tool,
		WorkRoot:    workRoot,
		PlotsDir:    plotsDir,
		Chromosomes: chromosomes,
		log:         logging.New("visualize"),
	}
}

// CohortSegments selects the segment files feeding the heatmaps: every
// called-segment artifact across the cohort, or, when no sample produced one,
// every plain segment artifact. The bintest-derived segment variant is never
// included in the fallback.
func CohortSegments(workRoot string, samples []discover.Sample) []string {
	var called, plain []string
	for _, s := range samples {
		p := pipeline.NewPaths(workRoot, s.ID)
		matches, err := filepath.Glob(filepath.Join(p.Dir, "*.cns"))
		if err != nil {
			continue
		}
		sort.Strings(matches)
		for _, m := range matches {
			switch {
			case strings.HasSuffix(m, ".call.cns"):
				called = append(called, m)
			case strings.HasSuffix(m, ".bintest.cns"):
				// test-derived variant, never a heatmap input
			default:
				plain = append(plain, m)
			}
		}
	}
	if len(called) > 0 {
		return called
	}
	return plain
}

// Render draws the cohort-wide heatmap, one heatmap per configured
// chromosome, and each sample's scatter and diagram plots. It returns an
// error only when the plots directory cannot be created.
func (v *Visualizer) Render(ctx context.Context, samples []discover.Sample) error {
	if err := os.MkdirAll(v.PlotsDir, 0755); err != nil {
		return fmt.Errorf("create plots dir: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if v.RenderWorkers > 1 {
		g.SetLimit(v.RenderWorkers)
	} else {
		g.SetLimit(1)
	}

	segments := CohortSegments(v.WorkRoot, samples)
	if len(segments) == 0 {
		v.log.Warn("no segment artifacts for cohort heatmaps")
	} else {
		v.heatmap(gctx, g, segments, "")
		for _, chrom := range v.Chromosomes {
			v.heatmap(gctx, g, segments, chrom)
		}
	}

	for _, s := range samples {
		s := s
		g.Go(func() error {
			v.samplePlots(gctx, s)
			return nil
		})
	}

	// Render failures are logged per call, never propagated.
	_ = g.Wait()
	return nil
}

func (v *Visualizer) heatmap(ctx context.Context, g *errgroup.Group, segments []string, chrom string) {
	out := heatmapPath(v.PlotsDir, chrom)
	if pipeline.Exists(out) {
		v.log.Info("heatmap exists, skipping", "out", out)
		return
	}
	g.Go(func() error {
		if err := v.Tool.Heatmap(ctx, segments, chrom, out); err != nil {
			v.log.Error("heatmap render failed", "chromosome", chrom, "error", err)
		}
		return nil
	})
}

// samplePlots draws the scatter and diagram for one sample, gated on the
// ratio file plus a segment file, preferring the called variant.
func (v *Visualizer) samplePlots(ctx context.Context, s discover.Sample) {
	p := pipeline.NewPaths(v.WorkRoot, s.ID)
	if !pipeline.Exists(p.Ratio()) {
		v.log.Info("no ratio file, skipping sample plots", "sample", s.ID)
		return
	}
	seg := p.CalledSegments()
	if !pipeline.Exists(seg) {
		seg = p.Segments()
	}
	if !pipeline.Exists(seg) {
		v.log.Info("no segment file, skipping sample plots", "sample", s.ID)
		return
	}

	if pipeline.Exists(p.Scatter()) {
		v.log.Info("scatter exists, skipping", "sample", s.ID)
	} else if err := v.Tool.Scatter(ctx, p.Ratio(), seg, p.Scatter()); err != nil {
		v.log.Error("scatter render failed", "sample", s.ID, "error", err)
	}

	if pipeline.Exists(p.Diagram()) {
		v.log.Info("diagram exists, skipping", "sample", s.ID)
	} else if err := v.Tool.Diagram(ctx, p.Ratio(), seg, p.Diagram()); err != nil {
		v.log.Error("diagram render failed", "sample", s.ID, "error", err)
	}
}

func heatmapPath(plotsDir, chrom string) string {
	if chrom == "" {
		return filepath.Join(plotsDir, "heatmap.pdf")
	}
	return filepath.Join(plotsDir, "heatmap-"+chrom+".pdf")
}
