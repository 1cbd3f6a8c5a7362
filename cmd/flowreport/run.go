package main

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/bgricker/flowreport/internal/convert"
	"github.com/bgricker/flowreport/internal/output"
	"github.com/bgricker/flowreport/internal/provider"
	"github.com/bgricker/flowreport/internal/provider/filter"
	"github.com/bgricker/flowreport/internal/runner"
	"github.com/bgricker/flowreport/internal/version"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [flow files...]",
		Short: "Run flows through Maestro and convert their logs",
		RunE:  runRun,
	}
	cmd.Flags().String("flows", "", "flow directory (default .maestro)")
	cmd.Flags().String("logs", "", "directory receiving one log folder per flow (default maestro-logs)")
	cmd.Flags().StringArray("param", nil, "flow parameter KEY=VALUE passed to maestro with -e (repeatable)")
	cmd.Flags().Int("workers", 1, "flows converted concurrently")
	cmd.Flags().Bool("dry-run", false, "print the maestro commands without running them")
	cmd.Flags().Bool("generate", false, "build the HTML report with allure after converting")
	cmd.Flags().String("report", "", "report directory for --generate (default allure-report)")
	addFlowFilterFlags(cmd)
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	suite, err := a.loadFlows(args)
	if err != nil {
		return err
	}
	if len(suite.Flows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No matching flows")
		return nil
	}

	warnings := collapseWarnings(suite.Warnings)
	if !a.cfg.DryRun {
		if msg := a.maestroWarning(ctx); msg != "" {
			warnings = append(warnings, msg)
		}
	}

	flowRunner := runner.NewMaestro(runner.Options{
		Binary:  a.cfg.Tools.Maestro,
		LogName: a.cfg.LogName,
		Stdout:  a.toolOut(cmd),
		Stderr:  cmd.ErrOrStderr(),
		Verbose: a.cfg.Verbose,
		DryRun:  a.cfg.DryRun,
		Params:  a.cfg.Params,
		Logger:  a.logger,
	})
	runs, err := runner.NewOrchestrator(flowRunner, a.cfg.LogsDir, a.logger).Run(ctx, suite.Flows)
	if err != nil {
		return err
	}

	if a.cfg.DryRun {
		rep := output.Report{Flows: suite.Flows, Runs: runs, Warnings: warnings}
		return a.render(cmd, rep, func(p *output.PrettyRenderer) error {
			return p.RenderRuns(runs)
		})
	}

	conv := a.newConverter()
	if err := conv.WriteEnvironment(a.cfg.Env); err != nil {
		return err
	}
	only, err := filter.NewSet(runPatterns(runs), nil)
	if err != nil {
		return err
	}
	summary, batchErr := conv.Batch(ctx, a.cfg.LogsDir, convert.BatchOptions{
		Filter: only,
		Flows:  provider.Index(suite.Flows),
	})
	if batchErr != nil && !errors.Is(batchErr, convert.ErrBatchEmpty) {
		return batchErr
	}

	if generate, _ := cmd.Flags().GetBool("generate"); generate && batchErr == nil {
		if err := a.generate(ctx, cmd); err != nil {
			return err
		}
	}

	rep := output.Report{Runs: runs, Summary: &summary, Warnings: warnings}
	if err := a.render(cmd, rep, func(p *output.PrettyRenderer) error {
		if err := p.RenderRuns(runs); err != nil {
			return err
		}
		return p.RenderSummary(summary)
	}); err != nil {
		return err
	}

	if batchErr != nil {
		return withCode(2, batchErr)
	}
	if failed := runner.Failed(runs); failed > 0 {
		return withCode(1, fmt.Errorf("%d of %d flows failed", failed, len(runs)))
	}
	return nil
}

// runPatterns selects exactly the log folders written by runs, leaving
// stale folders from earlier runs alone.
func runPatterns(runs []runner.FlowRun) []string {
	patterns := make([]string, 0, len(runs))
	for _, run := range runs {
		patterns = append(patterns, "/^"+regexp.QuoteMeta(run.Flow)+"$/")
	}
	return patterns
}

// maestroWarning checks the installed maestro against tools.maestro_version.
func (a *app) maestroWarning(ctx context.Context) string {
	info, err := version.DetectMaestro(ctx, a.cfg.Tools.Maestro)
	if err != nil {
		if version.Missing(err) {
			return "maestro executable not found; flows will fail to start"
		}
		return fmt.Sprintf("unable to detect maestro version: %v", err)
	}
	a.logger.Info().Str("version", info.Version).Msg("maestro detected")

	required := a.cfg.Tools.MaestroVersion
	if required == "" || !a.cfg.WarnVersionMismatch() {
		return ""
	}
	if !version.CompareMajorMinor(required, info.Version) {
		return fmt.Sprintf("maestro version mismatch: required %s but found %s", required, info.Version)
	}
	return ""
}
