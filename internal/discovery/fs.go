package discovery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoFlows indicates that no flow files were found during discovery.
var ErrNoFlows = errors.New("no flows discovered")

// workspaceConfig is the Maestro workspace file living next to flows; it is not a flow.
const workspaceConfig = "config.yaml"

// Flows returns Maestro flow file paths. If explicit paths are provided they
// are validated and returned in the order given. Otherwise every *.yaml and
// *.yml file directly inside dir is used, sorted lexicographically.
func Flows(dir string, explicit []string) ([]string, error) {
	if len(explicit) > 0 {
		return resolveExplicit(dir, explicit)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat flows dir %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("flows dir %q is not a directory", dir)
	}

	matches := make(map[string]struct{})
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		glob := filepath.Join(dir, pattern)
		found, err := filepath.Glob(glob)
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", glob, err)
		}
		for _, m := range found {
			if strings.EqualFold(filepath.Base(m), workspaceConfig) {
				continue
			}
			matches[m] = struct{}{}
		}
	}

	if len(matches) == 0 {
		return nil, ErrNoFlows
	}

	paths := make([]string, 0, len(matches))
	for p := range matches {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

func resolveExplicit(dir string, explicit []string) ([]string, error) {
	seen := make(map[string]struct{})
	resolved := make([]string, 0, len(explicit))
	for _, input := range explicit {
		cleaned := input
		if !filepath.IsAbs(cleaned) {
			if _, err := os.Stat(cleaned); err != nil && dir != "" {
				cleaned = filepath.Join(dir, cleaned)
			}
		}
		cleaned = filepath.Clean(cleaned)
		info, err := os.Stat(cleaned)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("flow %q not found", input)
			}
			return nil, fmt.Errorf("stat %q: %w", input, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("flow %q is a directory", input)
		}
		if _, ok := seen[cleaned]; ok {
			continue
		}
		seen[cleaned] = struct{}{}
		resolved = append(resolved, cleaned)
	}
	if len(resolved) == 0 {
		return nil, ErrNoFlows
	}
	return resolved, nil
}

// Entry is one flow directory found under a logs root.
type Entry struct {
	Name    string
	Dir     string
	LogPath string
	Missing bool
}

// FlowLogs enumerates the immediate subdirectories of root, sorted by name.
// Each entry points at logName inside its directory; Missing is set when
// that file does not exist or is not a regular file. Plain files in root
// are ignored. A missing root is an error matching os.ErrNotExist.
func FlowLogs(root, logName string) ([]Entry, error) {
	items, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read logs root %q: %w", root, err)
	}

	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		if !item.IsDir() {
			continue
		}
		dir := filepath.Join(root, item.Name())
		logPath := filepath.Join(dir, logName)
		entry := Entry{Name: item.Name(), Dir: dir, LogPath: logPath}
		info, err := os.Stat(logPath)
		if err != nil || !info.Mode().IsRegular() {
			entry.Missing = true
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
