package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "flowreport",
		Short:         "Flowreport turns Maestro flow logs into Allure results",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	persistent := cmd.PersistentFlags()
	persistent.String("config", "", "config file (default .flowreport.yml or .flowreport.toml)")
	persistent.String("format", "pretty", "output format (pretty|json)")
	persistent.BoolP("verbose", "v", false, "log progress and stream tool output")
	persistent.String("log-level", "", "log level (trace|debug|info|warn|error)")
	persistent.String("log-file", "", "also write logs to this file")
	persistent.String("suite", "", "suite name attached to every result")
	persistent.String("output", "", "Allure results directory")
	persistent.Bool("attach-log", true, "attach the raw log to each result")
	persistent.StringArray("env", nil, "environment property key=value for the report (repeatable)")

	cmd.AddCommand(newConvertCmd())
	cmd.AddCommand(newBatchCmd())
	cmd.AddCommand(newFlowsCmd())
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newGenerateCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// addFlowFilterFlags registers the flow selection flags shared by batch, flows and run.
func addFlowFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringArray("flow", nil, "include only matching flows (substring or /regex/)")
	cmd.Flags().StringArray("skip-flow", nil, "exclude matching flows (substring or /regex/)")
}
