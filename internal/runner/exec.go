package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/bgricker/flowreport/internal/provider"
	"github.com/bgricker/flowreport/internal/source"
)

// DefaultMaestroBinary is looked up on PATH when Options.Binary is empty.
const DefaultMaestroBinary = "maestro"

var (
	// ErrFlowFailed marks a flow that Maestro executed and reported as failing.
	// The log path returned alongside it is still valid.
	ErrFlowFailed = errors.New("flow failed")

	// ErrNoLog means Maestro finished without leaving a log behind.
	ErrNoLog = errors.New("maestro produced no log")
)

// FlowRunner executes one flow and returns the path of the log it produced.
type FlowRunner interface {
	RunFlow(ctx context.Context, flow provider.Flow, dest string) (string, error)
}

// FlowError carries the exit details of a failing flow. It matches ErrFlowFailed.
type FlowError struct {
	Flow     string
	ExitCode int
	Stderr   string
}

func (e *FlowError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("flow %q exited with code %d", e.Flow, e.ExitCode)
	}
	return fmt.Sprintf("flow %q exited with code %d: %s", e.Flow, e.ExitCode, e.Stderr)
}

func (e *FlowError) Is(target error) bool {
	return target == ErrFlowFailed
}

// Options configure how the Maestro runner executes flows.
type Options struct {
	Binary    string
	LogName   string
	Stdout    io.Writer
	Stderr    io.Writer
	Verbose   bool
	DryRun    bool
	TailLines int
	// Env is the base process environment, os.Environ() by default.
	Env []string
	// ExtraEnv overlays Env for the Maestro process.
	ExtraEnv map[string]string
	// Params are passed to flows as -e KEY=VALUE.
	Params map[string]string
	Logger arbor.ILogger
}

// MaestroRunner runs flows through the maestro CLI.
type MaestroRunner struct {
	opts Options
}

// NewMaestro creates a runner with the supplied options.
func NewMaestro(opts Options) *MaestroRunner {
	if opts.Binary == "" {
		opts.Binary = DefaultMaestroBinary
	}
	if opts.LogName == "" {
		opts.LogName = source.DefaultLogName
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	if opts.TailLines <= 0 {
		opts.TailLines = 20
	}
	if opts.Env == nil {
		opts.Env = os.Environ()
	}
	if opts.Logger == nil {
		opts.Logger = arbor.NewNoOpLogger()
	}
	return &MaestroRunner{opts: opts}
}

// Command returns the argument vector used to run flow with debug output in dest.
func (r *MaestroRunner) Command(flow provider.Flow, dest string) []string {
	args := []string{r.opts.Binary, "test", flow.Path, "--debug-output", dest}
	for _, k := range sortedKeys(r.opts.Params) {
		args = append(args, "-e", k+"="+r.opts.Params[k])
	}
	return args
}

// RunFlow executes flow and leaves its log at dest/LogName. In dry-run mode
// the command is printed and no log path is returned.
func (r *MaestroRunner) RunFlow(ctx context.Context, flow provider.Flow, dest string) (string, error) {
	args := r.Command(flow, dest)
	if r.opts.DryRun {
		fmt.Fprintln(r.opts.Stdout, strings.Join(args, " "))
		return "", nil
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", fmt.Errorf("create flow output dir %q: %w", dest, err)
	}
	target := filepath.Join(dest, r.opts.LogName)
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("remove previous log %q: %w", target, err)
	}
	previous, err := snapshotNamed(dest, filepath.Base(r.opts.LogName))
	if err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Env = mergeEnv(r.opts.Env, r.opts.ExtraEnv)

	var stdoutBuf, stderrBuf strings.Builder
	if r.opts.Verbose {
		cmd.Stdout = io.MultiWriter(r.opts.Stdout, &stdoutBuf)
		cmd.Stderr = io.MultiWriter(r.opts.Stderr, &stderrBuf)
	} else {
		cmd.Stdout = &stdoutBuf
		cmd.Stderr = &stderrBuf
	}

	start := time.Now()
	runErr := cmd.Run()
	r.opts.Logger.Debug().
		Str("flow", flow.Path).
		Int("exit_code", exitCode(runErr)).
		Str("elapsed", time.Since(start).Round(time.Millisecond).String()).
		Msg("maestro finished")

	var exitErr *exec.ExitError
	if runErr != nil && !errors.As(runErr, &exitErr) {
		return "", fmt.Errorf("run maestro for %q: %w", flow.Path, runErr)
	}

	logPath, logErr := collectLog(dest, r.opts.LogName, stdoutBuf.String(), previous)
	if runErr != nil {
		flowErr := &FlowError{
			Flow:     flow.Path,
			ExitCode: exitCode(runErr),
			Stderr:   tailLines(stderrBuf.String(), r.opts.TailLines),
		}
		if logErr != nil {
			r.opts.Logger.Warn().Err(logErr).Str("flow", flow.Path).Msg("failed flow left no log")
			return "", flowErr
		}
		return logPath, flowErr
	}
	if logErr != nil {
		return "", logErr
	}
	return logPath, nil
}

// collectLog makes sure dest/logName exists. Maestro nests its debug output in
// timestamped folders, so the newest file with that name is copied up. Files
// listed in previous with an unchanged modification time belong to earlier
// runs and are ignored. When no debug log exists the captured console output
// is written instead.
func collectLog(dest, logName, console string, previous map[string]time.Time) (string, error) {
	target := filepath.Join(dest, logName)
	if info, err := os.Stat(target); err == nil && info.Mode().IsRegular() {
		return target, nil
	}

	found, err := newestNamed(dest, filepath.Base(logName), previous)
	if err != nil {
		return "", err
	}
	if found != "" {
		if err := copyFile(found, target); err != nil {
			return "", err
		}
		return target, nil
	}

	if strings.TrimSpace(console) == "" {
		return "", fmt.Errorf("%w in %q", ErrNoLog, dest)
	}
	if err := os.WriteFile(target, []byte(console), 0o644); err != nil {
		return "", fmt.Errorf("write console log %q: %w", target, err)
	}
	return target, nil
}

// snapshotNamed records every file called name under root with its
// modification time.
func snapshotNamed(root, name string) (map[string]time.Time, error) {
	seen := make(map[string]time.Time)
	err := walkNamed(root, name, func(p string, info fs.FileInfo) {
		seen[p] = info.ModTime()
	})
	return seen, err
}

func newestNamed(root, name string, previous map[string]time.Time) (string, error) {
	var (
		newest   string
		newestAt time.Time
	)
	err := walkNamed(root, name, func(p string, info fs.FileInfo) {
		if at, ok := previous[p]; ok && at.Equal(info.ModTime()) {
			return
		}
		if newest == "" || info.ModTime().After(newestAt) {
			newest, newestAt = p, info.ModTime()
		}
	})
	return newest, err
}

func walkNamed(root, name string, visit func(string, fs.FileInfo)) error {
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != name {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		visit(p, info)
		return nil
	})
	if err != nil {
		return fmt.Errorf("search %q for %s: %w", root, name, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %q: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %q: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %q: %w", src, err)
	}
	return out.Close()
}

func mergeEnv(base []string, overlays ...map[string]string) []string {
	envMap := make(map[string]string, len(base)+len(overlays)*4)
	for _, kv := range base {
		if key, value, ok := strings.Cut(kv, "="); ok {
			envMap[key] = value
		}
	}
	for _, overlay := range overlays {
		for k, v := range overlay {
			envMap[k] = v
		}
	}
	out := make([]string, 0, len(envMap))
	for _, k := range sortedKeys(envMap) {
		out = append(out, k+"="+envMap[k])
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

func tailLines(input string, maxLines int) string {
	if input == "" {
		return ""
	}
	lines := strings.Split(strings.TrimRight(input, "\n"), "\n")
	if len(lines) <= maxLines {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[len(lines)-maxLines:], "\n")
}
