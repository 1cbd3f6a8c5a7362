package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bgricker/flowreport/internal/config"
	"github.com/bgricker/flowreport/internal/runner"
	"github.com/bgricker/flowreport/internal/version"
)

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Build the Allure HTML report from a results directory",
		Args:  cobra.NoArgs,
		RunE:  runGenerate,
	}
	cmd.Flags().String("results", "", "Allure results directory (default allure-results)")
	cmd.Flags().String("report", "", "report output directory (default allure-report)")
	cmd.Flags().Bool("dry-run", false, "print the allure command without running it")
	return cmd
}

func runGenerate(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	return a.generate(cmd.Context(), cmd)
}

func (a *app) generate(ctx context.Context, cmd *cobra.Command) error {
	if !a.cfg.DryRun {
		if _, err := version.DetectAllure(ctx, a.cfg.Tools.Allure); err != nil && version.Missing(err) {
			return fmt.Errorf("allure executable not found; install the Allure CLI or set tools.allure: %w", err)
		}
	}

	var reporter runner.Reporter = &runner.AllureCLI{
		Binary:  a.cfg.Tools.Allure,
		Stdout:  a.toolOut(cmd),
		Stderr:  cmd.ErrOrStderr(),
		Verbose: a.cfg.Verbose,
		DryRun:  a.cfg.DryRun,
	}
	if err := reporter.Generate(ctx, a.cfg.Output, a.cfg.ReportDir); err != nil {
		return err
	}
	a.logger.Info().Str("results", a.cfg.Output).Str("report", a.cfg.ReportDir).Msg("report generated")

	if !a.cfg.DryRun && a.cfg.Format == config.FormatPretty {
		fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", a.cfg.ReportDir)
	}
	return nil
}
