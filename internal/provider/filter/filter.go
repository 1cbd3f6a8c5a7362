package filter

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bgricker/flowreport/internal/provider"
)

// Pattern represents a compiled filter condition supporting substring and regex matching.
type Pattern struct {
	raw   string
	regex *regexp.Regexp
	lower string
}

// Compile transforms raw pattern strings into Pattern values. A pattern
// wrapped in slashes is a regular expression, anything else a
// case-insensitive substring.
func Compile(patterns []string) ([]Pattern, error) {
	result := make([]Pattern, 0, len(patterns))
	for _, raw := range patterns {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if len(raw) >= 2 && strings.HasPrefix(raw, "/") && strings.HasSuffix(raw, "/") {
			re, err := regexp.Compile(raw[1 : len(raw)-1])
			if err != nil {
				return nil, fmt.Errorf("compile regexp %q: %w", raw, err)
			}
			result = append(result, Pattern{raw: raw, regex: re})
			continue
		}
		result = append(result, Pattern{raw: raw, lower: strings.ToLower(raw)})
	}
	return result, nil
}

// String returns the pattern as written.
func (p Pattern) String() string {
	return p.raw
}

// Match reports whether the pattern matches the supplied string.
func (p Pattern) Match(s string) bool {
	if s == "" {
		return false
	}
	if p.regex != nil {
		return p.regex.MatchString(s)
	}
	return strings.Contains(strings.ToLower(s), p.lower)
}

// Set is a pair of include and exclude pattern lists.
type Set struct {
	Only []Pattern
	Skip []Pattern
}

// NewSet compiles include and exclude patterns.
func NewSet(only, skip []string) (Set, error) {
	o, err := Compile(only)
	if err != nil {
		return Set{}, err
	}
	s, err := Compile(skip)
	if err != nil {
		return Set{}, err
	}
	return Set{Only: o, Skip: s}, nil
}

// Allows reports whether any of names passes the set: at least one include
// pattern must match when includes exist, and no exclude pattern may match.
func (s Set) Allows(names ...string) bool {
	if len(s.Only) > 0 && !matchesAny(s.Only, names) {
		return false
	}
	if len(s.Skip) > 0 && matchesAny(s.Skip, names) {
		return false
	}
	return true
}

// FilterFlows returns the flows allowed by the set, matching on the display
// name and on the file name.
func FilterFlows(flows []provider.Flow, set Set) []provider.Flow {
	if len(flows) == 0 {
		return nil
	}
	result := make([]provider.Flow, 0, len(flows))
	for _, flow := range flows {
		if !set.Allows(flow.DisplayName(), filepath.Base(flow.Path)) {
			continue
		}
		result = append(result, flow)
	}
	return result
}

func matchesAny(patterns []Pattern, names []string) bool {
	for _, pattern := range patterns {
		for _, name := range names {
			if pattern.Match(name) {
				return true
			}
		}
	}
	return false
}
