package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bgricker/flowreport/internal/config"
)

func gatherFlags(cmd *cobra.Command) (config.FlagValues, error) {
	flags := cmd.Flags()
	var values config.FlagValues

	for _, f := range []struct {
		name string
		dst  *config.StringFlag
	}{
		{"suite", &values.Suite},
		{"output", &values.Output},
		{"results", &values.Output},
		{"root", &values.Root},
		{"log-name", &values.LogName},
		{"flows", &values.FlowsDir},
		{"logs", &values.LogsDir},
		{"report", &values.ReportDir},
		{"format", &values.Format},
		{"log-level", &values.LogLevel},
		{"log-file", &values.LogFile},
		{"username", &values.Username},
		{"access-key", &values.AccessKey},
	} {
		if !flags.Changed(f.name) {
			continue
		}
		v, err := flags.GetString(f.name)
		if err != nil {
			return values, fmt.Errorf("parse --%s: %w", f.name, err)
		}
		*f.dst = config.StringFlag{Value: v, Set: true}
	}

	if flags.Changed("flow") {
		v, err := flags.GetStringArray("flow")
		if err != nil {
			return values, fmt.Errorf("parse --flow: %w", err)
		}
		values.OnlyFlows = config.SliceFlag{Values: append([]string{}, v...)}
	}

	if flags.Changed("skip-flow") {
		v, err := flags.GetStringArray("skip-flow")
		if err != nil {
			return values, fmt.Errorf("parse --skip-flow: %w", err)
		}
		values.SkipFlows = config.SliceFlag{Values: append([]string{}, v...)}
	}

	if flags.Changed("workers") {
		v, err := flags.GetInt("workers")
		if err != nil {
			return values, fmt.Errorf("parse --workers: %w", err)
		}
		values.Workers = config.IntFlag{Value: v, Set: true}
	}

	var err error
	if values.Env, err = mapFlag(flags, "env"); err != nil {
		return values, err
	}
	if values.Params, err = mapFlag(flags, "param"); err != nil {
		return values, err
	}

	for _, f := range []struct {
		name string
		dst  *config.BoolFlag
	}{
		{"attach-log", &values.AttachLog},
		{"dry-run", &values.DryRun},
		{"verbose", &values.Verbose},
	} {
		if !flags.Changed(f.name) {
			continue
		}
		v, err := flags.GetBool(f.name)
		if err != nil {
			return values, fmt.Errorf("parse --%s: %w", f.name, err)
		}
		*f.dst = config.BoolFlag{Value: v, Set: true}
	}

	return values, nil
}

// mapFlag reads a repeatable key=value flag.
func mapFlag(flags *pflag.FlagSet, name string) (config.MapFlag, error) {
	if !flags.Changed(name) {
		return config.MapFlag{}, nil
	}
	pairs, err := flags.GetStringArray(name)
	if err != nil {
		return config.MapFlag{}, fmt.Errorf("parse --%s: %w", name, err)
	}
	values := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return config.MapFlag{}, fmt.Errorf("parse --%s: %q is not key=value", name, pair)
		}
		values[key] = value
	}
	return config.MapFlag{Values: values}, nil
}
