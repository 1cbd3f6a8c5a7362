package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config captures CLI options sourced from config files or flags.
type Config struct {
	Suite   string `yaml:"suite" toml:"suite" validate:"required"`
	Output  string `yaml:"output" toml:"output" validate:"required"`
	Root    string `yaml:"root" toml:"root"`
	LogName string `yaml:"log_name" toml:"log_name" validate:"required,excludesall=/"`

	FlowsDir  string `yaml:"flows_dir" toml:"flows_dir"`
	LogsDir   string `yaml:"logs_dir" toml:"logs_dir"`
	ReportDir string `yaml:"report_dir" toml:"report_dir"`

	OnlyFlows []string `yaml:"only_flow" toml:"only_flow"`
	SkipFlows []string `yaml:"skip_flow" toml:"skip_flow"`

	Workers   int               `yaml:"workers" toml:"workers" validate:"gte=1,lte=64"`
	AttachLog *bool             `yaml:"attach_log" toml:"attach_log"`
	Env       map[string]string `yaml:"env" toml:"env" validate:"dive,keys,required,endkeys"`
	Params    map[string]string `yaml:"params" toml:"params" validate:"dive,keys,required,endkeys"`

	DryRun   bool   `yaml:"dry_run" toml:"dry_run"`
	Verbose  bool   `yaml:"verbose" toml:"verbose"`
	Format   string `yaml:"format" toml:"format" validate:"oneof=pretty json"`
	LogLevel string `yaml:"log_level" toml:"log_level" validate:"oneof=trace debug info warn error"`
	LogFile  string `yaml:"log_file" toml:"log_file"`

	Tools ToolsConfig `yaml:"tools" toml:"tools"`
	Warn  WarnConfig  `yaml:"warn" toml:"warn"`
	Auth  AuthConfig  `yaml:"auth" toml:"auth"`
}

// AuthConfig holds HTTP Basic Auth credentials for remote logs.
type AuthConfig struct {
	Username  string `yaml:"username" toml:"username"`
	AccessKey string `yaml:"access_key" toml:"access_key"`
}

// ToolsConfig locates the external binaries.
type ToolsConfig struct {
	Maestro        string `yaml:"maestro" toml:"maestro"`
	Allure         string `yaml:"allure" toml:"allure"`
	MaestroVersion string `yaml:"maestro_version" toml:"maestro_version"`
}

// WarnConfig controls additional warning behaviour.
type WarnConfig struct {
	VersionMismatch *bool `yaml:"version_mismatch" toml:"version_mismatch"`
}

const (
	// FormatPretty renders human readable output.
	FormatPretty = "pretty"
	// FormatJSON renders machine readable output.
	FormatJSON = "json"

	// UsernameEnv and AccessKeyEnv supply credentials nothing else set.
	UsernameEnv  = "BROWSERSTACK_USERNAME"
	AccessKeyEnv = "BROWSERSTACK_ACCESS_KEY"

	// YAMLFile and TOMLFile are looked up in the working directory, YAML first.
	YAMLFile = ".flowreport.yml"
	TOMLFile = ".flowreport.toml"
)

// Default returns the baseline configuration used when no flags or config file specify values.
func Default() Config {
	return Config{
		Suite:     "Maestro",
		Output:    "allure-results",
		Root:      "maestro-logs",
		LogName:   "maestro.log",
		FlowsDir:  ".maestro",
		LogsDir:   "maestro-logs",
		ReportDir: "allure-report",
		Workers:   1,
		Format:    FormatPretty,
		LogLevel:  "warn",
	}
}

// AttachLogEnabled reports whether raw logs are attached to results. Defaults to true.
func (c Config) AttachLogEnabled() bool {
	return c.AttachLog == nil || *c.AttachLog
}

// WarnVersionMismatch reports whether a tools.maestro_version mismatch is
// warned about. Defaults to true.
func (c Config) WarnVersionMismatch() bool {
	return c.Warn.VersionMismatch == nil || *c.Warn.VersionMismatch
}

// Load reads the config file from dir when present. Missing files are ignored.
func Load(dir string) (Config, error) {
	for _, name := range []string{YAMLFile, TOMLFile} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return Default(), fmt.Errorf("stat config %q: %w", path, err)
		}
		return LoadFile(path)
	}
	return Default(), nil
}

// LoadFile reads an explicit config file; the format follows its extension.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %q: %w", path, err)
	}

	var fileCfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &fileCfg)
	default:
		err = yaml.Unmarshal(data, &fileCfg)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}

	cfg = merge(cfg, fileCfg)
	return cfg, nil
}

func merge(base, override Config) Config {
	out := base

	setString(&out.Suite, override.Suite)
	setString(&out.Output, override.Output)
	setString(&out.Root, override.Root)
	setString(&out.LogName, override.LogName)
	setString(&out.FlowsDir, override.FlowsDir)
	setString(&out.LogsDir, override.LogsDir)
	setString(&out.ReportDir, override.ReportDir)
	setString(&out.Format, override.Format)
	setString(&out.LogLevel, override.LogLevel)
	setString(&out.LogFile, override.LogFile)
	setString(&out.Tools.Maestro, override.Tools.Maestro)
	setString(&out.Tools.Allure, override.Tools.Allure)
	setString(&out.Tools.MaestroVersion, override.Tools.MaestroVersion)
	setString(&out.Auth.Username, override.Auth.Username)
	setString(&out.Auth.AccessKey, override.Auth.AccessKey)

	if len(override.OnlyFlows) > 0 {
		out.OnlyFlows = append([]string{}, override.OnlyFlows...)
	}
	if len(override.SkipFlows) > 0 {
		out.SkipFlows = append([]string{}, override.SkipFlows...)
	}
	if override.Workers != 0 {
		out.Workers = override.Workers
	}
	if override.AttachLog != nil {
		v := *override.AttachLog
		out.AttachLog = &v
	}
	out.Env = mergeMap(out.Env, override.Env)
	out.Params = mergeMap(out.Params, override.Params)
	if override.DryRun {
		out.DryRun = true
	}
	if override.Verbose {
		out.Verbose = true
	}
	if override.Warn.VersionMismatch != nil {
		v := *override.Warn.VersionMismatch
		out.Warn.VersionMismatch = &v
	}

	return out
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func mergeMap(base, override map[string]string) map[string]string {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

// ApplyFlags mutates cfg by applying values from CLI flags when they are present.
func ApplyFlags(cfg *Config, flags FlagValues) {
	for _, f := range []struct {
		dst  *string
		flag StringFlag
	}{
		{&cfg.Suite, flags.Suite},
		{&cfg.Output, flags.Output},
		{&cfg.Root, flags.Root},
		{&cfg.LogName, flags.LogName},
		{&cfg.FlowsDir, flags.FlowsDir},
		{&cfg.LogsDir, flags.LogsDir},
		{&cfg.ReportDir, flags.ReportDir},
		{&cfg.Format, flags.Format},
		{&cfg.LogLevel, flags.LogLevel},
		{&cfg.LogFile, flags.LogFile},
		{&cfg.Auth.Username, flags.Username},
		{&cfg.Auth.AccessKey, flags.AccessKey},
	} {
		if f.flag.Set {
			*f.dst = f.flag.Value
		}
	}
	if len(flags.OnlyFlows.Values) > 0 {
		cfg.OnlyFlows = append([]string{}, flags.OnlyFlows.Values...)
	}
	if len(flags.SkipFlows.Values) > 0 {
		cfg.SkipFlows = append([]string{}, flags.SkipFlows.Values...)
	}
	if flags.Workers.Set {
		cfg.Workers = flags.Workers.Value
	}
	if flags.AttachLog.Set {
		v := flags.AttachLog.Value
		cfg.AttachLog = &v
	}
	if len(flags.Env.Values) > 0 {
		cfg.Env = mergeMap(cfg.Env, flags.Env.Values)
	}
	if len(flags.Params.Values) > 0 {
		cfg.Params = mergeMap(cfg.Params, flags.Params.Values)
	}
	if flags.DryRun.Set {
		cfg.DryRun = flags.DryRun.Value
	}
	if flags.Verbose.Set {
		cfg.Verbose = flags.Verbose.Value
	}
}

// ApplyEnv fills credentials left empty by the config file and flags from
// UsernameEnv and AccessKeyEnv.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if cfg.Auth.Username == "" {
		cfg.Auth.Username = getenv(UsernameEnv)
	}
	if cfg.Auth.AccessKey == "" {
		cfg.Auth.AccessKey = getenv(AccessKeyEnv)
	}
}

var validate = validator.New()

// Validate checks the merged configuration.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", strings.ToLower(fe.Field()), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// FlagValues captures CLI flag state with knowledge of whether each flag was set explicitly.
type FlagValues struct {
	Suite     StringFlag
	Output    StringFlag
	Root      StringFlag
	LogName   StringFlag
	FlowsDir  StringFlag
	LogsDir   StringFlag
	ReportDir StringFlag
	OnlyFlows SliceFlag
	SkipFlows SliceFlag
	Workers   IntFlag
	AttachLog BoolFlag
	Env       MapFlag
	Params    MapFlag
	Format    StringFlag
	LogLevel  StringFlag
	LogFile   StringFlag
	Username  StringFlag
	AccessKey StringFlag
	DryRun    BoolFlag
	Verbose   BoolFlag
}

// StringFlag represents a string flag and whether it was set.
type StringFlag struct {
	Value string
	Set   bool
}

// SliceFlag represents a slice flag and whether it captured values via CLI.
type SliceFlag struct {
	Values []string
}

// MapFlag represents key=value pairs captured via CLI.
type MapFlag struct {
	Values map[string]string
}

// IntFlag represents an int flag and whether it was set.
type IntFlag struct {
	Value int
	Set   bool
}

// BoolFlag represents a bool flag and whether it was set.
type BoolFlag struct {
	Value bool
	Set   bool
}
