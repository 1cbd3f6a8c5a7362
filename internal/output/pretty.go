package output

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bgricker/flowreport/internal/provider"
	"github.com/bgricker/flowreport/internal/report"
	"github.com/bgricker/flowreport/internal/runner"
)

// traceFrames is how many stack frames of a step error are shown before the
// rest is collapsed.
const traceFrames = 3

// PrettyRenderer renders conversion and run results in a human-friendly format.
type PrettyRenderer struct {
	out io.Writer
}

// NewPretty creates a PrettyRenderer writing to the provided writer.
func NewPretty(out io.Writer) *PrettyRenderer {
	return &PrettyRenderer{out: out}
}

// RenderFlows lists discovered flows with their metadata.
func (p *PrettyRenderer) RenderFlows(suite provider.Suite) error {
	var buffer bytes.Buffer
	for _, flow := range suite.Flows {
		fmt.Fprintf(&buffer, "Flow %s\n", decorateName(flow.DisplayName(), flow.Path))
		if flow.AppID != "" {
			fmt.Fprintf(&buffer, "  app: %s\n", flow.AppID)
		}
		if len(flow.Tags) > 0 {
			fmt.Fprintf(&buffer, "  tags: %s\n", strings.Join(flow.Tags, ", "))
		}
	}
	_, err := buffer.WriteTo(p.out)
	return err
}

// RenderTest shows a single converted flow with its steps.
func (p *PrettyRenderer) RenderTest(test report.TestResult, resultFile string) error {
	var buffer bytes.Buffer
	fmt.Fprintf(&buffer, "%s %s [%s] (%d steps)\n", statusGlyph(test.Status), test.Name, test.Suite, len(test.Steps))
	for i, step := range test.Steps {
		pad := "    " + strings.Repeat("  ", report.Depth(test.Steps, i))
		fmt.Fprintf(&buffer, "%s%s %s", pad, statusGlyph(step.Status), step.Name)
		if step.HasDuration {
			fmt.Fprintf(&buffer, " (%s)", formatDuration(step.Duration))
		}
		buffer.WriteString("\n")
		if step.Status == report.StatusFailed && step.Error != "" {
			fmt.Fprintf(&buffer, "%s\n", indent(cleanTrace(step.Error), pad+"  "))
		}
	}
	if resultFile != "" {
		fmt.Fprintf(&buffer, "  result: %s\n", resultFile)
	}
	_, err := buffer.WriteTo(p.out)
	return err
}

// RenderSummary shows every flow of a batch followed by the summary line.
func (p *PrettyRenderer) RenderSummary(summary report.Summary) error {
	var buffer bytes.Buffer
	if summary.Suite != "" {
		fmt.Fprintf(&buffer, "Suite %s\n", summary.Suite)
	}
	for _, flow := range summary.Flows {
		switch flow.Outcome {
		case report.OutcomeConverted:
			fmt.Fprintf(&buffer, "  %s %s (%d steps)\n", statusGlyph(flow.Status), flow.Flow, flow.Steps)
		case report.OutcomeSkipped:
			fmt.Fprintf(&buffer, "  - %s skipped: %s\n", flow.Flow, flow.Message)
		default:
			fmt.Fprintf(&buffer, "  ! %s error: %s\n", flow.Flow, flow.Message)
		}
	}
	fmt.Fprintf(&buffer, "SUMMARY: %d converted, %d skipped, %d errors (%d passed, %d failed, %d skipped, %d unknown) (%s)\n",
		summary.Converted, summary.Skipped, summary.Errors,
		summary.Statuses.Passed, summary.Statuses.Failed, summary.Statuses.Skipped, summary.Statuses.Unknown,
		formatDuration(summary.Duration))
	_, err := buffer.WriteTo(p.out)
	return err
}

// RenderRuns shows how each flow execution went.
func (p *PrettyRenderer) RenderRuns(runs []runner.FlowRun) error {
	var buffer bytes.Buffer
	for _, run := range runs {
		fmt.Fprintf(&buffer, "  %s %s (%s)\n", runGlyph(run.Status), decorateName(run.Flow, run.Path), formatDuration(run.Duration))
		if run.Message != "" {
			fmt.Fprintf(&buffer, "%s\n", indent(run.Message, "      "))
		}
	}
	fmt.Fprintf(&buffer, "RUNS: %d flows, %d failed\n", len(runs), runner.Failed(runs))
	_, err := buffer.WriteTo(p.out)
	return err
}

// cleanTrace keeps the message lines of a step error and the first few stack
// frames, collapsing the rest into a count.
func cleanTrace(detail string) string {
	var (
		kept    []string
		frames  int
		dropped int
	)
	for _, line := range strings.Split(detail, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "at ") {
			frames++
			if frames > traceFrames {
				dropped++
				continue
			}
		}
		kept = append(kept, line)
	}
	if dropped > 0 {
		kept = append(kept, fmt.Sprintf("... %d more", dropped))
	}
	return strings.Join(kept, "\n")
}

func decorateName(name, path string) string {
	if name == "" || name == path {
		return path
	}
	if path == "" {
		return name
	}
	return fmt.Sprintf("%s (%s)", name, path)
}

func statusGlyph(status report.Status) string {
	switch status {
	case report.StatusPassed:
		return "✓"
	case report.StatusFailed:
		return "✗"
	case report.StatusSkipped:
		return "-"
	default:
		return "?"
	}
}

func runGlyph(status string) string {
	switch status {
	case runner.RunPassed:
		return "✓"
	case runner.RunFailed:
		return "✗"
	case runner.RunDryRun:
		return "·"
	default:
		return "!"
	}
}

func indent(s, pad string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = pad + lines[i]
	}
	return strings.Join(lines, "\n")
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Truncate(time.Millisecond).String()
}
