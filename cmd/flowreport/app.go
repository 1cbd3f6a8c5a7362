package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"github.com/bgricker/flowreport/internal/config"
	"github.com/bgricker/flowreport/internal/convert"
	"github.com/bgricker/flowreport/internal/logging"
	"github.com/bgricker/flowreport/internal/logparse"
	"github.com/bgricker/flowreport/internal/output"
	"github.com/bgricker/flowreport/internal/provider"
	"github.com/bgricker/flowreport/internal/source"
)

// app bundles what every command needs after flags and config are resolved.
type app struct {
	cfg    config.Config
	root   string
	logger arbor.ILogger
}

func loadApp(cmd *cobra.Command) (*app, error) {
	cfg, root, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if cfg.Verbose && !cmd.Flags().Changed("log-level") {
		level = "info"
	}
	logger, err := logging.New(logging.Options{
		Level:   level,
		Console: cfg.Format != config.FormatJSON,
		File:    cfg.LogFile,
	})
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, root: root, logger: logger}, nil
}

func loadConfig(cmd *cobra.Command) (config.Config, string, error) {
	root, err := os.Getwd()
	if err != nil {
		return config.Config{}, "", fmt.Errorf("determine working directory: %w", err)
	}

	var cfg config.Config
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load(root)
	}
	if err != nil {
		return config.Config{}, "", err
	}

	flags, err := gatherFlags(cmd)
	if err != nil {
		return config.Config{}, "", err
	}
	config.ApplyFlags(&cfg, flags)
	config.ApplyEnv(&cfg, os.Getenv)
	cfg.Format = strings.ToLower(cfg.Format)

	if err := cfg.Validate(); err != nil {
		return config.Config{}, "", err
	}
	return cfg, root, nil
}

// render writes rep as JSON, or calls pretty for human output.
func (a *app) render(cmd *cobra.Command, rep output.Report, pretty func(*output.PrettyRenderer) error) error {
	switch a.cfg.Format {
	case config.FormatJSON:
		rep.Grammar = logparse.GrammarVersion
		return output.NewJSON(cmd.OutOrStdout()).Render(rep)
	default:
		if err := pretty(output.NewPretty(cmd.OutOrStdout())); err != nil {
			return err
		}
		for _, msg := range rep.Warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", msg)
		}
		return nil
	}
}

func collapseWarnings(warnings []provider.Warning) []string {
	if len(warnings) == 0 {
		return nil
	}
	out := make([]string, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, fmt.Sprintf("%s: %s", w.Flow, w.Message))
	}
	return out
}

func (a *app) newConverter() *convert.Converter {
	loader := source.NewLoader()
	loader.Username = a.cfg.Auth.Username
	loader.Password = a.cfg.Auth.AccessKey
	loader.UserAgent = source.DefaultUserAgent + "/" + Version
	return convert.New(convert.Options{
		OutputDir: a.cfg.Output,
		Suite:     a.cfg.Suite,
		LogName:   a.cfg.LogName,
		AttachLog: a.cfg.AttachLogEnabled(),
		Workers:   a.cfg.Workers,
		Logger:    a.logger,
		Loader:    loader,
	})
}

// toolOut receives dry-run commands and streamed tool output. JSON mode keeps
// stdout for the report.
func (a *app) toolOut(cmd *cobra.Command) io.Writer {
	if a.cfg.Format == config.FormatJSON {
		return cmd.ErrOrStderr()
	}
	return cmd.OutOrStdout()
}
