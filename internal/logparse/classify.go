// Package logparse turns Maestro console logs into ordered step events.
//
// The accepted line grammar is pinned as GrammarVersion. A line is either a
// step marker, continuation text, or noise:
//
//	[timestamp] [decoration] <marker> <label> [(duration)]
//
// Markers are glyphs (✓ ✗ ⚠ ...) or upper-case keywords (PASS, FAILED, SKIP ...).
//
// Maestro debug logs (maestro.log from --debug-output) are also understood.
// Their command lines carry a trailing state instead of a leading marker:
//
//	12:00:01.250 [ INFO] maestro.cli.runner.TestSuiteInteractor.invoke: Launch app COMPLETED
//
// Every other line carrying the debug prefix is noise.
package logparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bgricker/flowreport/internal/report"
)

// GrammarVersion identifies the upstream log format this parser accepts.
const GrammarVersion = "maestro-console/v1"

// Kind tags the variant held by a Line.
type Kind int

const (
	// KindNoise is a blank or otherwise meaningless line.
	KindNoise Kind = iota
	// KindStep is a step outcome line.
	KindStep
	// KindContinuation is free text following a step, such as error detail.
	KindContinuation
	// KindStart marks a debug log command entering the RUNNING state.
	KindStart
)

func (k Kind) String() string {
	switch k {
	case KindStep:
		return "step"
	case KindContinuation:
		return "continuation"
	case KindStart:
		return "start"
	default:
		return "noise"
	}
}

// Line is the classification of a single log line. Status, Duration and
// Timestamp are only meaningful for KindStep. Clock is the time of day of a
// debug log line and is set for KindStart and debug KindStep lines.
type Line struct {
	Kind        Kind
	Status      report.Status
	Text        string
	Duration    time.Duration
	HasDuration bool
	Timestamp   time.Time
	Clock       time.Duration
	HasClock    bool
}

type marker struct {
	token  string
	status report.Status
}

// Longer glyphs come first so variation-selector forms win over their bare prefix.
var glyphs = []marker{
	{"⚠️", report.StatusSkipped},
	{"⏭️", report.StatusSkipped},
	{"✓", report.StatusPassed},
	{"✔", report.StatusPassed},
	{"✅", report.StatusPassed},
	{"☑", report.StatusPassed},
	{"✗", report.StatusFailed},
	{"✘", report.StatusFailed},
	{"❌", report.StatusFailed},
	{"✖", report.StatusFailed},
	{"⚠", report.StatusSkipped},
	{"↷", report.StatusSkipped},
	{"⏭", report.StatusSkipped},
	{"➖", report.StatusSkipped},
}

var keywords = map[string]report.Status{
	"PASS":      report.StatusPassed,
	"PASSED":    report.StatusPassed,
	"COMPLETED": report.StatusPassed,
	"FAIL":      report.StatusFailed,
	"FAILED":    report.StatusFailed,
	"SKIP":      report.StatusSkipped,
	"SKIPPED":   report.StatusSkipped,
	"WARNED":    report.StatusSkipped,
}

var (
	timestampRegex  = regexp.MustCompile(`^\s*(\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})?)\s+`)
	keywordRegex    = regexp.MustCompile(`^\[?([A-Z]+)\]?:?(?:\s+|$)`)
	durationRegex   = regexp.MustCompile(`\s*\(((?:\d+(?:\.\d+)?(?:ns|us|µs|ms|s|m|h))+)\)\s*$`)
	debugRegex      = regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2})\.(\d{3})\s+\[\s*\w+\]\s+(\S+?):\s*(.*)$`)
	debugStateRegex = regexp.MustCompile(`^(.+?)\s+(RUNNING|COMPLETED|FAILED)\s*$`)
)

// debugInvoker is the logger that reports command state in debug logs.
const debugInvoker = "TestSuiteInteractor.invoke"

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z0700",
	"2006-01-02 15:04:05.999999999",
}

const decoration = " \t║│|"

// Classify inspects one raw log line. It never fails: anything that is not a
// recognisable step marker is continuation text, and blank lines are noise.
func Classify(raw string) Line {
	raw = strings.TrimRight(raw, "\r")
	if strings.TrimSpace(raw) == "" {
		return Line{Kind: KindNoise}
	}
	if m := debugRegex.FindStringSubmatch(raw); m != nil {
		return classifyDebug(m)
	}

	rest := raw
	var ts time.Time
	if m := timestampRegex.FindStringSubmatch(rest); m != nil {
		if parsed, ok := parseTimestamp(m[1]); ok {
			ts = parsed
			rest = rest[len(m[0]):]
		}
	}

	body := strings.TrimLeft(rest, decoration)
	status, label, ok := splitMarker(body)
	if !ok {
		return Line{Kind: KindContinuation, Text: strings.TrimSpace(raw)}
	}

	line := Line{Kind: KindStep, Status: status, Timestamp: ts}
	if m := durationRegex.FindStringSubmatchIndex(label); m != nil {
		if d, err := time.ParseDuration(label[m[2]:m[3]]); err == nil {
			line.Duration = d
			line.HasDuration = true
			label = label[:m[0]]
		}
	}
	line.Text = strings.TrimSpace(label)
	if line.Text == "" {
		return Line{Kind: KindContinuation, Text: strings.TrimSpace(raw)}
	}
	return line
}

func classifyDebug(m []string) Line {
	if !strings.HasSuffix(m[5], debugInvoker) {
		return Line{Kind: KindNoise}
	}
	state := debugStateRegex.FindStringSubmatch(m[6])
	if state == nil {
		return Line{Kind: KindNoise}
	}

	var clock time.Duration
	for i, unit := range []time.Duration{time.Hour, time.Minute, time.Second, time.Millisecond} {
		n, _ := strconv.Atoi(m[i+1])
		clock += time.Duration(n) * unit
	}
	line := Line{Text: strings.Join(strings.Fields(state[1]), " "), Clock: clock, HasClock: true}
	switch state[2] {
	case "RUNNING":
		line.Kind = KindStart
	case "COMPLETED":
		line.Kind = KindStep
		line.Status = report.StatusPassed
	default:
		line.Kind = KindStep
		line.Status = report.StatusFailed
	}
	return line
}

func splitMarker(body string) (report.Status, string, bool) {
	for _, g := range glyphs {
		if !strings.HasPrefix(body, g.token) {
			continue
		}
		after := body[len(g.token):]
		if after != "" && !startsWithSpace(after) {
			return "", "", false
		}
		return g.status, after, true
	}

	m := keywordRegex.FindStringSubmatch(body)
	if m == nil {
		return "", "", false
	}
	status, ok := keywords[m[1]]
	if !ok {
		return "", "", false
	}
	return status, body[len(m[0]):], true
}

func startsWithSpace(s string) bool {
	return s[0] == ' ' || s[0] == '\t'
}

func parseTimestamp(value string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
