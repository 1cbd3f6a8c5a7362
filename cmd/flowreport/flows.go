package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bgricker/flowreport/internal/discovery"
	"github.com/bgricker/flowreport/internal/output"
	"github.com/bgricker/flowreport/internal/provider"
	"github.com/bgricker/flowreport/internal/provider/filter"
	"github.com/bgricker/flowreport/internal/provider/maestro"
)

func newFlowsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flows [flow files...]",
		Short: "List Maestro flows with their metadata",
		RunE:  runFlows,
	}
	cmd.Flags().String("flows", "", "flow directory (default .maestro)")
	addFlowFilterFlags(cmd)
	return cmd
}

func runFlows(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}

	suite, err := a.loadFlows(args)
	if err != nil {
		return err
	}
	if len(suite.Flows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No matching flows")
		return nil
	}

	rep := output.Report{Flows: suite.Flows, Warnings: collapseWarnings(suite.Warnings)}
	return a.render(cmd, rep, func(p *output.PrettyRenderer) error {
		return p.RenderFlows(suite)
	})
}

// loadFlows discovers, parses and filters flow files.
func (a *app) loadFlows(explicit []string) (provider.Suite, error) {
	paths, err := discovery.Flows(a.cfg.FlowsDir, explicit)
	if err != nil {
		if errors.Is(err, discovery.ErrNoFlows) {
			return provider.Suite{}, fmt.Errorf("no flows found in %s; pass flow files as arguments or set --flows", a.cfg.FlowsDir)
		}
		return provider.Suite{}, err
	}

	suite, err := maestro.NewParser("").Parse(paths)
	if err != nil {
		return provider.Suite{}, err
	}

	set, err := filter.NewSet(a.cfg.OnlyFlows, a.cfg.SkipFlows)
	if err != nil {
		return provider.Suite{}, err
	}
	suite.Flows = filter.FilterFlows(suite.Flows, set)
	return suite, nil
}

// flowMetadata loads the flow directory when there is one. Results still
// convert without it, so problems are logged and otherwise ignored.
func (a *app) flowMetadata() provider.Suite {
	if _, err := os.Stat(a.cfg.FlowsDir); err != nil {
		return provider.Suite{}
	}
	paths, err := discovery.Flows(a.cfg.FlowsDir, nil)
	if err != nil {
		a.logger.Debug().Str("dir", a.cfg.FlowsDir).Err(err).Msg("no flow metadata")
		return provider.Suite{}
	}
	suite, err := maestro.NewParser("").Parse(paths)
	if err != nil {
		a.logger.Warn().Str("dir", a.cfg.FlowsDir).Err(err).Msg("flow metadata unavailable")
		return provider.Suite{}
	}
	return suite
}
