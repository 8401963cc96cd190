package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"cnvpilot/internal/logging"
	"cnvpilot/internal/reference"
)

var validateCmd = &cobra.Command{
	Use:   "validate <reference.cnn>",
	Short: "Check a copy-number reference for structural problems",
	Long: `Validate runs structural and logical checks on a .cnn reference file:
required columns, NaN/Inf values, coordinate sanity, spread health and the
presence of flat fallback bins. Critical failures exit non-zero.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	logging.Init(slog.LevelWarn, "text")

	report, err := reference.Validate(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Validating: %s\n\n", args[0])
	fmt.Fprint(out, report.Summary())
	if !report.OK() {
		return fmt.Errorf("reference failed validation")
	}
	fmt.Fprintln(out, "\nAll critical checks passed.")
	return nil
}
