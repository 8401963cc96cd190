package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "cnvpilot",
	Short: "Tumor-only copy-number variant calling with CNVkit",
	Long: "Cnvpilot drives CNVkit over a cohort of tumor alignments:\n" +
		"per-sample coverage, ratio correction, segmentation and calling,\n" +
		"followed by cohort-level heatmaps and per-sample plots.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(plotsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(referenceCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
