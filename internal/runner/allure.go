package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// DefaultAllureBinary is looked up on PATH when AllureCLI.Binary is empty.
const DefaultAllureBinary = "allure"

// Reporter renders a results directory into a browsable report.
type Reporter interface {
	Generate(ctx context.Context, resultsDir, reportDir string) error
}

// AllureCLI generates reports with the allure command line tool.
type AllureCLI struct {
	Binary    string
	Stdout    io.Writer
	Stderr    io.Writer
	Verbose   bool
	DryRun    bool
	TailLines int
}

// Command returns the argument vector for generating reportDir from resultsDir.
func (a *AllureCLI) Command(resultsDir, reportDir string) []string {
	binary := a.Binary
	if binary == "" {
		binary = DefaultAllureBinary
	}
	return []string{binary, "generate", resultsDir, "-o", reportDir, "--clean"}
}

// Generate runs allure generate. A missing results directory is reported
// before anything is executed.
func (a *AllureCLI) Generate(ctx context.Context, resultsDir, reportDir string) error {
	args := a.Command(resultsDir, reportDir)
	stdout := a.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	if a.DryRun {
		fmt.Fprintln(stdout, strings.Join(args, " "))
		return nil
	}

	info, err := os.Stat(resultsDir)
	if err != nil {
		return fmt.Errorf("stat results dir %q: %w", resultsDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("results dir %q is not a directory", resultsDir)
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var stderrBuf strings.Builder
	if a.Verbose {
		cmd.Stdout = stdout
		cmd.Stderr = io.MultiWriter(orDiscard(a.Stderr), &stderrBuf)
	} else {
		cmd.Stdout = io.Discard
		cmd.Stderr = &stderrBuf
	}

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return fmt.Errorf("run allure: %w", err)
		}
		tail := a.TailLines
		if tail <= 0 {
			tail = 20
		}
		return fmt.Errorf("allure generate exited with code %d: %s", exitCode(err), tailLines(stderrBuf.String(), tail))
	}
	return nil
}

func orDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
