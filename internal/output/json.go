package output

import (
	"encoding/json"
	"io"

	"github.com/bgricker/flowreport/internal/provider"
	"github.com/bgricker/flowreport/internal/report"
	"github.com/bgricker/flowreport/internal/runner"
)

// JSONRenderer emits structured conversion and run data.
type JSONRenderer struct {
	out io.Writer
}

// NewJSON creates a JSON renderer writing to out.
func NewJSON(out io.Writer) *JSONRenderer {
	return &JSONRenderer{out: out}
}

// Conversion describes one converted flow.
type Conversion struct {
	Name       string        `json:"name"`
	Suite      string        `json:"suite"`
	Status     report.Status `json:"status"`
	Steps      int           `json:"steps"`
	Error      string        `json:"error,omitempty"`
	ResultFile string        `json:"result_file,omitempty"`
}

// NewConversion summarises test for JSON output.
func NewConversion(test report.TestResult, resultFile string) *Conversion {
	return &Conversion{
		Name:       test.Name,
		Suite:      test.Suite,
		Status:     test.Status,
		Steps:      len(test.Steps),
		Error:      test.Error,
		ResultFile: resultFile,
	}
}

// Report captures JSON output schema. Sections not produced by a command are omitted.
type Report struct {
	Grammar    string           `json:"grammar"`
	Flows      []provider.Flow  `json:"flows,omitempty"`
	Runs       []runner.FlowRun `json:"runs,omitempty"`
	Conversion *Conversion      `json:"conversion,omitempty"`
	Summary    *report.Summary  `json:"summary,omitempty"`
	Warnings   []string         `json:"warnings,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// Render encodes the report as JSON.
func (j *JSONRenderer) Render(report Report) error {
	enc := json.NewEncoder(j.out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
