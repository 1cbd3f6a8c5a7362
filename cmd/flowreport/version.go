package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/ternarybob/banner"

	"github.com/bgricker/flowreport/internal/config"
	"github.com/bgricker/flowreport/internal/logparse"
	"github.com/bgricker/flowreport/internal/version"
)

// toolStatus is one detected external tool in `version --format json`.
type toolStatus struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

type versionReport struct {
	Version string       `json:"version"`
	Commit  string       `json:"commit"`
	Grammar string       `json:"grammar"`
	Tools   []toolStatus `json:"tools"`
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the flowreport version and detected tools",
		Args:  cobra.NoArgs,
		RunE:  runVersion,
	}
}

func runVersion(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	rep := versionReport{Version: Version, Commit: GitCommit, Grammar: logparse.GrammarVersion}
	maestroInfo, maestroErr := version.DetectMaestro(ctx, a.cfg.Tools.Maestro)
	rep.Tools = append(rep.Tools, newToolStatus("maestro", maestroInfo, maestroErr))
	allureInfo, allureErr := version.DetectAllure(ctx, a.cfg.Tools.Allure)
	rep.Tools = append(rep.Tools, newToolStatus("allure", allureInfo, allureErr))

	out := cmd.OutOrStdout()
	if a.cfg.Format == config.FormatJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	banner.Print("flowreport", Version)
	printVersion(out, rep)
	return nil
}

func newToolStatus(name string, info version.Info, err error) toolStatus {
	switch {
	case err == nil:
		return toolStatus{Name: name, Version: info.Version}
	case version.Missing(err):
		return toolStatus{Name: name, Error: "not found"}
	default:
		return toolStatus{Name: name, Error: err.Error()}
	}
}

func printVersion(out io.Writer, rep versionReport) {
	fmt.Fprintf(out, "flowreport %s (commit %s)\n", rep.Version, rep.Commit)
	fmt.Fprintf(out, "grammar    %s\n", rep.Grammar)
	for _, tool := range rep.Tools {
		v := tool.Version
		if tool.Error != "" {
			v = tool.Error
		}
		fmt.Fprintf(out, "%-10s %s\n", tool.Name, v)
	}
}
