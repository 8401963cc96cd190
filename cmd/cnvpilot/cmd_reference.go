package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"cnvpilot/internal/logging"
	"cnvpilot/internal/reference"
)

var referenceFlags struct {
	coverageDir string
	mapPath     string
	outputPath  string
}

var referenceCmd = &cobra.Command{
	Use:   "reference",
	Short: "Build a curated flat reference from per-sample coverage",
	Long: `Reference builds a copy-number reference for tumor-only cohorts where no
matched normals exist. The inclusion map lists, per sample, the chromosomes
judged diploid from a flat-reference run; only those contribute to the per-bin
statistics. Bins no sample covers fall back to a flat profile (log2 = 0).

The inclusion map is a YAML file:

  PT15-t: [chr2, chr7, chr12]
  PT18-t: [chr1, chr5]`,
	RunE: runReference,
}

func init() {
	f := referenceCmd.Flags()
	f.StringVarP(&referenceFlags.coverageDir, "coverage-dir", "d", "", "Directory with per-sample .cnn coverage files (required)")
	f.StringVarP(&referenceFlags.mapPath, "map", "m", "", "YAML inclusion map of sample to diploid chromosomes (required)")
	f.StringVarP(&referenceFlags.outputPath, "output", "o", "reference.cnn", "Output reference path")

	_ = referenceCmd.MarkFlagRequired("coverage-dir")
	_ = referenceCmd.MarkFlagRequired("map")
}

func runReference(cmd *cobra.Command, _ []string) error {
	logging.Init(slog.LevelInfo, "text")

	m, err := reference.LoadInclusionMap(referenceFlags.mapPath)
	if err != nil {
		return err
	}

	b := reference.NewBuilder(referenceFlags.coverageDir, m)
	ref, err := b.Build()
	if err != nil {
		return fmt.Errorf("build reference: %w", err)
	}
	if err := ref.Write(referenceFlags.outputPath); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Reference written: %s (%d bins, %d samples)\n",
		referenceFlags.outputPath, len(ref.Rows), len(m))

	report, err := reference.Validate(referenceFlags.outputPath)
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	fmt.Fprint(out, report.Summary())
	if !report.OK() {
		return fmt.Errorf("built reference failed validation")
	}
	return nil
}
