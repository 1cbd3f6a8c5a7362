package report

import "time"

// Status is the outcome of a step or of a whole flow.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
	StatusUnknown Status = "unknown"
)

// FlowLog is the raw execution log of one flow as produced by the test runner.
type FlowLog struct {
	Path    string
	Name    string
	Content string
	ModTime time.Time
}

// StepEvent captures one step parsed from a flow log, in log order.
// Line is the 1-based line of the step marker in the source log.
//
// Offset is the step start relative to the first clock reading of the log;
// only debug logs carry one. Parent is the 1-based index of the enclosing
// step in the same slice, 0 for a top-level step. Parents always precede
// their children.
type StepEvent struct {
	Status      Status
	Name        string
	Duration    time.Duration
	HasDuration bool
	Error       string
	Timestamp   time.Time
	Offset      time.Duration
	HasOffset   bool
	Parent      int
	Line        int
}

// TestResult is the structured outcome of one flow.
type TestResult struct {
	Name   string
	Suite  string
	Status Status
	Steps  []StepEvent
	Start  time.Time
	Stop   time.Time
	Labels map[string]string
	Tags   []string
	Error  string
	Source string
}

// Aggregate folds step statuses worst-case-wins: any failure fails the flow,
// then any skip skips it, then any pass passes it. No steps yields unknown.
func Aggregate(steps []StepEvent) Status {
	var passed, skipped bool
	for _, step := range steps {
		switch step.Status {
		case StatusFailed:
			return StatusFailed
		case StatusSkipped:
			skipped = true
		case StatusPassed:
			passed = true
		}
	}
	switch {
	case skipped:
		return StatusSkipped
	case passed:
		return StatusPassed
	default:
		return StatusUnknown
	}
}

// FirstFailure returns the first failed step, if any. When that step has a
// failed child the innermost failure is returned, since it carries the detail.
func FirstFailure(steps []StepEvent) (StepEvent, bool) {
	found := -1
	for i, step := range steps {
		if step.Status != StatusFailed {
			continue
		}
		if found < 0 || step.Parent == found+1 {
			found = i
		}
	}
	if found < 0 {
		return StepEvent{}, false
	}
	return steps[found], true
}

// Depth reports how many parents enclose steps[i].
func Depth(steps []StepEvent, i int) int {
	depth := 0
	for p := steps[i].Parent; p > 0 && p-1 < i; p = steps[p-1].Parent {
		depth++
		i = p - 1
	}
	return depth
}

// Outcome values recorded per flow in a batch.
const (
	OutcomeConverted = "converted"
	OutcomeSkipped   = "skipped"
	OutcomeError     = "error"
)

// FlowOutcome records what happened to one flow during a batch.
type FlowOutcome struct {
	Flow       string `json:"flow"`
	Outcome    string `json:"outcome"`
	Status     Status `json:"status,omitempty"`
	Steps      int    `json:"steps"`
	ResultFile string `json:"result_file,omitempty"`
	Message    string `json:"message,omitempty"`
}

// StatusCounts tallies converted flows by their aggregated status.
type StatusCounts struct {
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Unknown int `json:"unknown"`
}

// Summary aggregates a batch conversion.
type Summary struct {
	Suite      string        `json:"suite"`
	Total      int           `json:"total"`
	Converted  int           `json:"converted"`
	Skipped    int           `json:"skipped"`
	Errors     int           `json:"errors"`
	Statuses   StatusCounts  `json:"statuses"`
	Flows      []FlowOutcome `json:"flows"`
	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"duration_ms"`
}

// Record adds a flow outcome to the summary and updates the counters.
func (s *Summary) Record(outcome FlowOutcome) {
	s.Total++
	s.Flows = append(s.Flows, outcome)
	switch outcome.Outcome {
	case OutcomeConverted:
		s.Converted++
		switch outcome.Status {
		case StatusPassed:
			s.Statuses.Passed++
		case StatusFailed:
			s.Statuses.Failed++
		case StatusSkipped:
			s.Statuses.Skipped++
		default:
			s.Statuses.Unknown++
		}
	case OutcomeSkipped:
		s.Skipped++
	default:
		s.Errors++
	}
}
