package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bgricker/flowreport/internal/config"
	"github.com/bgricker/flowreport/internal/convert"
	"github.com/bgricker/flowreport/internal/output"
)

func newConvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert one flow log into an Allure result",
		Args:  cobra.NoArgs,
		RunE:  runConvert,
	}
	cmd.Flags().String("log", "", "log file path, file:// or http(s):// URL")
	cmd.Flags().String("name", "", "test name (default: derived from the log location)")
	cmd.Flags().String("start", "", "flow start time in RFC 3339 (default: log modification time)")
	cmd.Flags().String("username", "", "HTTP Basic Auth user for remote logs (env "+config.UsernameEnv+")")
	cmd.Flags().String("access-key", "", "HTTP Basic Auth password for remote logs (env "+config.AccessKeyEnv+")")
	_ = cmd.MarkFlagRequired("log")
	return cmd
}

func runConvert(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}

	locator, _ := cmd.Flags().GetString("log")
	name, _ := cmd.Flags().GetString("name")
	req := convert.Request{Name: name}
	if raw, _ := cmd.Flags().GetString("start"); raw != "" {
		start, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return fmt.Errorf("parse --start: %w", err)
		}
		req.Start = start
	}

	conv := a.newConverter()
	if err := conv.WriteEnvironment(a.cfg.Env); err != nil {
		return err
	}
	res, err := conv.ConvertFile(cmd.Context(), locator, req)
	if err != nil {
		return err
	}
	a.logger.Info().Str("result", res.Path).Str("status", string(res.Test.Status)).Msg("flow converted")

	rep := output.Report{Conversion: output.NewConversion(res.Test, res.Path)}
	return a.render(cmd, rep, func(p *output.PrettyRenderer) error {
		return p.RenderTest(res.Test, res.Path)
	})
}
