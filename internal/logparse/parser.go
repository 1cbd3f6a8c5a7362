package logparse

import (
	"strings"
	"time"

	"github.com/bgricker/flowreport/internal/report"
)

// Result holds the steps extracted from one log together with line counters.
type Result struct {
	Steps        []report.StepEvent
	Lines        int
	Continuation int
	Ignored      int
}

// unfinishedError is the detail recorded for a debug log command that
// entered RUNNING and never reported a final state.
const unfinishedError = "step did not complete"

// openStep is a debug log command that has entered RUNNING.
type openStep struct {
	index int
	clock time.Duration
}

// Parse scans content line by line. Continuation text following a failed step
// is appended to that step's error detail; any other continuation text,
// including everything before the first step, is ignored.
//
// Debug log commands are placed at their RUNNING line and nested under the
// command that was running when they started. A COMPLETED or FAILED line
// closes the innermost open command with the same label and takes its
// duration from the clock difference. Commands that never close stay failed
// at their RUNNING position.
func Parse(content string) Result {
	var (
		res        Result
		lastFailed = -1
		open       []openStep
		firstClock time.Duration
		clocked    bool
	)
	offset := func(clock time.Duration) time.Duration {
		if !clocked {
			firstClock, clocked = clock, true
		}
		return clockSpan(firstClock, clock)
	}
	parent := func() int {
		if len(open) == 0 {
			return 0
		}
		return open[len(open)-1].index + 1
	}

	lines := strings.Split(content, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	res.Lines = len(lines)

	for idx, raw := range lines {
		line := Classify(raw)
		switch line.Kind {
		case KindStart:
			res.Steps = append(res.Steps, report.StepEvent{
				Status:    report.StatusFailed,
				Name:      line.Text,
				Error:     unfinishedError,
				Offset:    offset(line.Clock),
				HasOffset: true,
				Parent:    parent(),
				Line:      idx + 1,
			})
			open = append(open, openStep{index: len(res.Steps) - 1, clock: line.Clock})
			lastFailed = -1
		case KindStep:
			if line.HasClock {
				if i := innermost(open, res.Steps, line.Text); i >= 0 {
					o := open[i]
					open = open[:i]
					step := &res.Steps[o.index]
					step.Status = line.Status
					step.Error = ""
					step.Duration = clockSpan(o.clock, line.Clock)
					step.HasDuration = true
					lastFailed = -1
					if line.Status == report.StatusFailed {
						lastFailed = o.index
					}
					continue
				}
			}
			event := report.StepEvent{
				Status:      line.Status,
				Name:        line.Text,
				Duration:    line.Duration,
				HasDuration: line.HasDuration,
				Timestamp:   line.Timestamp,
				Line:        idx + 1,
			}
			if line.HasClock {
				event.Offset = offset(line.Clock)
				event.HasOffset = true
				event.Parent = parent()
			}
			res.Steps = append(res.Steps, event)
			lastFailed = -1
			if line.Status == report.StatusFailed {
				lastFailed = len(res.Steps) - 1
			}
		case KindContinuation:
			if lastFailed < 0 {
				res.Ignored++
				continue
			}
			res.Continuation++
			step := &res.Steps[lastFailed]
			if step.Error == "" {
				step.Error = line.Text
			} else {
				step.Error += "\n" + line.Text
			}
		default:
			res.Ignored++
		}
	}
	return res
}

// innermost returns the position in open of the most recently started command
// named name, or -1.
func innermost(open []openStep, steps []report.StepEvent, name string) int {
	for i := len(open) - 1; i >= 0; i-- {
		if steps[open[i].index].Name == name {
			return i
		}
	}
	return -1
}

// clockSpan measures between two times of day, allowing one wrap past midnight.
func clockSpan(from, to time.Duration) time.Duration {
	d := to - from
	if d < 0 {
		d += 24 * time.Hour
	}
	return d
}
