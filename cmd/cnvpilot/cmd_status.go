package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cnvpilot/internal/discover"
	"cnvpilot/internal/pipeline"
)

var statusFlags struct {
	configPath string
	verbose    bool
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-sample pipeline progress",
	Long: `Status reports, for every discovered sample, which stage artifacts exist in
its work directory and the recorded outcome of the last run, without invoking
the external tool.`,
	RunE: runStatus,
}

func init() {
	f := statusCmd.Flags()
	f.StringVarP(&statusFlags.configPath, "config", "c", "", "Pipeline config file (YAML/JSON, required)")
	f.BoolVarP(&statusFlags.verbose, "verbose", "v", false, "Also print the stage history of each sample")

	_ = statusCmd.MarkFlagRequired("config")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, closer, err := loadConfig(statusFlags.configPath)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	samples, err := discover.Samples(cfg.BamDir, cfg.BamPattern)
	if err != nil {
		return fmt.Errorf("discover samples: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(samples) == 0 {
		fmt.Fprintln(out, "no samples found")
		return nil
	}

	fmt.Fprintf(out, "%-20s %-18s %s\n", "SAMPLE", "STATUS", "ARTIFACTS")
	for _, s := range samples {
		p := pipeline.NewPaths(cfg.WorkDir, s.ID)

		status := "not started"
		state, err := pipeline.LoadState(p.Dir)
		if err != nil {
			status = "state unreadable"
		} else if state != nil {
			status = state.Status
			if state.Status == pipeline.StatusFailed && state.FailedStage != "" {
				status = fmt.Sprintf("failed (%s)", state.FailedStage)
			}
		}

		fmt.Fprintf(out, "%-20s %-18s %s\n", s.ID, status, artifactFlags(p))

		if statusFlags.verbose && state != nil {
			for _, h := range state.History {
				fmt.Fprintf(out, "  %s -> %s %s\n", h.Stage, h.Outcome, h.Timestamp)
			}
		}
	}
	return nil
}

// artifactFlags marks each stage artifact as present (its letter) or absent (-),
// in pipeline order: Coverage, Fix, Segment, cAll, Breaks, Genemetrics.
func artifactFlags(p pipeline.Paths) string {
	flags := []struct {
		letter string
		path   string
	}{
		{"C", p.TargetCoverage()},
		{"F", p.Ratio()},
		{"S", p.Segments()},
		{"A", p.CalledSegments()},
		{"B", p.Breaks()},
		{"G", p.Genemetrics()},
	}
	out := ""
	for _, f := range flags {
		if pipeline.Exists(f.path) {
			out += f.letter
		} else {
			out += "-"
		}
	}
	return out
}
