package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/bgricker/flowreport/internal/convert"
	"github.com/bgricker/flowreport/internal/output"
	"github.com/bgricker/flowreport/internal/provider"
	"github.com/bgricker/flowreport/internal/provider/filter"
)

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Convert every flow log folder under a root directory",
		Args:  cobra.NoArgs,
		RunE:  runBatch,
	}
	cmd.Flags().String("root", "", "directory holding one folder per flow (default maestro-logs)")
	cmd.Flags().String("log-name", "", "log file name inside each flow folder (default maestro.log)")
	cmd.Flags().Int("workers", 1, "flows converted concurrently")
	cmd.Flags().String("flows", "", "flow directory used for names and labels (default .maestro)")
	addFlowFilterFlags(cmd)
	return cmd
}

func runBatch(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}

	set, err := filter.NewSet(a.cfg.OnlyFlows, a.cfg.SkipFlows)
	if err != nil {
		return err
	}
	suite := a.flowMetadata()

	conv := a.newConverter()
	if err := conv.WriteEnvironment(a.cfg.Env); err != nil {
		return err
	}
	summary, batchErr := conv.Batch(cmd.Context(), a.cfg.Root, convert.BatchOptions{
		Filter: set,
		Flows:  provider.Index(suite.Flows),
	})
	if batchErr != nil && !errors.Is(batchErr, convert.ErrBatchEmpty) {
		return batchErr
	}

	rep := output.Report{Summary: &summary, Warnings: collapseWarnings(suite.Warnings)}
	if err := a.render(cmd, rep, func(p *output.PrettyRenderer) error {
		return p.RenderSummary(summary)
	}); err != nil {
		return err
	}
	return withCode(2, batchErr)
}
