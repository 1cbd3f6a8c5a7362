package version

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// Info captures an external tool found on the system.
type Info struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// detectTimeout bounds a version probe; maestro starts a JVM.
const detectTimeout = 30 * time.Second

var semverRegex = regexp.MustCompile(`v?(\d+\.\d+(?:\.\d+)?)`)

// DetectMaestro returns the installed Maestro CLI version by calling `maestro --version`.
func DetectMaestro(ctx context.Context, binary string) (Info, error) {
	return detect(ctx, "maestro", binary, "--version")
}

// DetectAllure returns the installed Allure CLI version by calling `allure --version`.
func DetectAllure(ctx context.Context, binary string) (Info, error) {
	return detect(ctx, "allure", binary, "--version")
}

func detect(ctx context.Context, name, binary string, args ...string) (Info, error) {
	if binary == "" {
		binary = name
	}
	out, err := runCommand(ctx, binary, args...)
	if err != nil {
		return Info{}, err
	}
	v, err := parseVersion(name, out)
	if err != nil {
		return Info{}, err
	}
	return Info{Name: name, Version: v}, nil
}

// parseVersion takes the last version-looking token, skipping JVM banners
// and update notices printed before it.
func parseVersion(name, out string) (string, error) {
	matches := semverRegex.FindAllStringSubmatch(out, -1)
	if len(matches) == 0 {
		return "", fmt.Errorf("unable to parse %s version from %q", name, out)
	}
	return matches[len(matches)-1][1], nil
}

func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, detectTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = nil
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// CompareMajorMinor compares major.minor portions of two semver-like versions.
func CompareMajorMinor(desired, actual string) bool {
	d := semverPrefix(desired)
	a := semverPrefix(actual)
	if d == "" || a == "" {
		return false
	}
	return strings.EqualFold(d, a)
}

func semverPrefix(version string) string {
	parts := strings.Split(strings.TrimPrefix(version, "v"), ".")
	if len(parts) < 2 {
		return ""
	}
	return fmt.Sprintf("%s.%s", parts[0], parts[1])
}

// Missing reports whether executing the command failed because the binary
// does not exist, either on PATH or at an explicit location.
func Missing(cmdErr error) bool {
	return errors.Is(cmdErr, exec.ErrNotFound) || errors.Is(cmdErr, fs.ErrNotExist)
}
