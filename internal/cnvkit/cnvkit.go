// Package cnvkit wraps the external cnvkit.py executable. Every subcommand is
// an opaque blocking call; this package only builds argument vectors and
// reports the exit status. Artifact checks live with the caller.
package cnvkit

import (
	"context"
	"strconv"
)

// Invoker runs one external command to completion. The production
// implementation is ExecInvoker; tests substitute a recording fake.
type Invoker interface {
	Run(ctx context.Context, name string, args ...string) error
}

// Tool builds and runs cnvkit.py subcommand invocations.
type Tool struct {
	Exe       string // executable name or path, e.g. "cnvkit.py"
	Processes int    // worker-count hint forwarded as -p
	Invoker   Invoker
}

// New returns a Tool running exe through inv with the given process hint.
func New(exe string, processes int, inv Invoker) *Tool {
	return &Tool{Exe: exe, Processes: processes, Invoker: inv}
}

func (t *Tool) run(ctx context.Context, args ...string) error {
	return t.Invoker.Run(ctx, t.Exe, args...)
}

// Coverage computes on- or off-target coverage for one BAM against a region
// set.
func (t *Tool) Coverage(ctx context.Context, bam, regions, out string) error {
	return t.run(ctx, "coverage", bam, regions,
		"-p", strconv.Itoa(t.Processes), "-o", out)
}

// Fix normalizes target and antitarget coverage against the reference,
// producing the ratio file. noBias disables GC and edge correction, used as
// the one-shot fallback for references lacking the correction metadata.
func (t *Tool) Fix(ctx context.Context, target, antitarget, reference, out string, noBias bool) error {
	args := []string{"fix", target, antitarget, reference}
	if noBias {
		args = append(args, "--no-gc", "--no-edge")
	}
	args = append(args, "-o", out)
	return t.run(ctx, args...)
}

// Segment derives copy-number segments from the ratio file using circular
// binary segmentation, dropping low-coverage bins.
func (t *Tool) Segment(ctx context.Context, cnr, out string) error {
	return t.run(ctx, "segment", cnr, "-m", "cbs", "--drop-low-coverage",
		"-p", strconv.Itoa(t.Processes), "-o", out)
}

// Call annotates segments with discrete copy-number calls. vcf may be empty;
// when set, allele fractions from the variant file inform the calls.
func (t *Tool) Call(ctx context.Context, cns, vcf, out string) error {
	args := []string{"call", cns, "-m", "clonal"}
	if vcf != "" {
		args = append(args, "-v", vcf)
	}
	args = append(args, "-o", out)
	return t.run(ctx, args...)
}

// Breaks lists genes straddling segmentation breakpoints.
func (t *Tool) Breaks(ctx context.Context, cnr, cns, out string) error {
	return t.run(ctx, "breaks", cnr, cns, "--min-probes", "3", "-o", out)
}

// Genemetrics tabulates per-gene copy number from ratios and called segments.
func (t *Tool) Genemetrics(ctx context.Context, cnr, cns, out string) error {
	return t.run(ctx, "genemetrics", cnr, "-s", cns, "--drop-low-coverage", "-o", out)
}

// Heatmap renders a cohort heatmap from segment files. chrom limits the
// render to one chromosome; empty means all.
func (t *Tool) Heatmap(ctx context.Context, segments []string, chrom, out string) error {
	args := append([]string{"heatmap"}, segments...)
	args = append(args, "-d")
	if chrom != "" {
		args = append(args, "-c", chrom)
	}
	args = append(args, "-o", out)
	return t.run(ctx, args...)
}

// Scatter renders the per-sample ratio/segment scatter plot.
func (t *Tool) Scatter(ctx context.Context, cnr, cns, out string) error {
	return t.run(ctx, "scatter", cnr, "-s", cns, "-o", out)
}

// Diagram renders the per-sample chromosome ideogram.
func (t *Tool) Diagram(ctx context.Context, cnr, cns, out string) error {
	return t.run(ctx, "diagram", cnr, "-s", cns, "-o", out)
}
