package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cnvpilot/internal/pipeline"
	"cnvpilot/internal/visualize"
)

var runFlags struct {
	configPath string
	noPlots    bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full CNV pipeline over the cohort",
	Long: `Run discovers tumor BAMs, executes the CNVkit stage sequence per sample
(coverage, fix, segment, call, breaks, genemetrics) and finishes with the
cohort heatmaps and per-sample plots.

Stages whose output artifact already exists are skipped, so an interrupted
cohort run can simply be restarted. A failing sample is recorded and the run
continues with the next one; only configuration problems abort the run.`,
	RunE: runPipeline,
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runFlags.configPath, "config", "c", "", "Pipeline config file (YAML/JSON, required)")
	f.BoolVar(&runFlags.noPlots, "no-plots", false, "Skip cohort visualization after the sample loop")

	_ = runCmd.MarkFlagRequired("config")
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	cfg, closer, err := loadConfig(runFlags.configPath)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	tool := buildTool(cfg)
	resolver, err := buildResolver(cfg)
	if err != nil {
		return fmt.Errorf("variant resolver: %w", err)
	}

	runner := pipeline.NewRunner(tool, cfg.Reference, resolver, cfg.WorkDir)

	var vis pipeline.Visualizer
	if !runFlags.noPlots {
		vis = visualize.New(tool, cfg.WorkDir, cfg.PlotsDir, cfg.Chromosomes)
	}

	orch := pipeline.NewOrchestrator(cfg, runner, vis)
	report, err := orch.Run(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, report.Summary())
	for _, f := range report.Failures {
		fmt.Fprintf(out, "  failed: %v\n", f)
	}
	return nil
}
