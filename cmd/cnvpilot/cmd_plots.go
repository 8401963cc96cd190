package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cnvpilot/internal/discover"
	"cnvpilot/internal/visualize"
)

var plotsFlags struct {
	configPath string
	workers    int
}

var plotsCmd = &cobra.Command{
	Use:   "plots",
	Short: "Render cohort heatmaps and per-sample plots",
	Long: `Plots renders the visualization layer on its own: the cohort-wide heatmap,
one heatmap per configured chromosome, and each sample's scatter and diagram.
Existing plot files are left untouched, so it is safe to re-run after adding
samples to the work directory.`,
	RunE: runPlots,
}

func init() {
	f := plotsCmd.Flags()
	f.StringVarP(&plotsFlags.configPath, "config", "c", "", "Pipeline config file (YAML/JSON, required)")
	f.IntVar(&plotsFlags.workers, "workers", 0, "Concurrent render processes (0 = sequential)")

	_ = plotsCmd.MarkFlagRequired("config")
}

func runPlots(cmd *cobra.Command, _ []string) error {
	cfg, closer, err := loadConfig(plotsFlags.configPath)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	samples, err := discover.Samples(cfg.BamDir, cfg.BamPattern)
	if err != nil {
		return fmt.Errorf("discover samples: %w", err)
	}
	if len(samples) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no samples found")
		return nil
	}

	vis := visualize.New(buildTool(cfg), cfg.WorkDir, cfg.PlotsDir, cfg.Chromosomes)
	vis.RenderWorkers = plotsFlags.workers
	if err := vis.Render(cmd.Context(), samples); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "plots written to %s\n", cfg.PlotsDir)
	return nil
}
