// Package allure maps flow results onto the Allure 2 results format and
// writes them into a results directory.
package allure

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/bgricker/flowreport/internal/report"
)

// StageFinished is the only stage emitted; results are written after the fact.
const StageFinished = "finished"

// Result mirrors an Allure `*-result.json` document.
type Result struct {
	UUID          string         `json:"uuid"`
	HistoryID     string         `json:"historyId"`
	TestCaseID    string         `json:"testCaseId"`
	Name          string         `json:"name"`
	FullName      string         `json:"fullName"`
	Status        string         `json:"status"`
	Stage         string         `json:"stage"`
	StatusDetails *StatusDetails `json:"statusDetails,omitempty"`
	Steps         []Step         `json:"steps"`
	Labels        []Label        `json:"labels"`
	Parameters    []Parameter    `json:"parameters"`
	Attachments   []Attachment   `json:"attachments"`
	Start         int64          `json:"start"`
	Stop          int64          `json:"stop"`
}

// Step is a single Allure step.
type Step struct {
	Name          string         `json:"name"`
	Status        string         `json:"status"`
	Stage         string         `json:"stage"`
	StatusDetails *StatusDetails `json:"statusDetails,omitempty"`
	Steps         []Step         `json:"steps"`
	Attachments   []Attachment   `json:"attachments"`
	Parameters    []Parameter    `json:"parameters"`
	Start         int64          `json:"start"`
	Stop          int64          `json:"stop"`
}

// StatusDetails carries the failure message and trace.
type StatusDetails struct {
	Message string `json:"message,omitempty"`
	Trace   string `json:"trace,omitempty"`
}

// Label is a name/value pair used by Allure for grouping.
type Label struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Parameter is a name/value pair shown alongside the test.
type Parameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Attachment references a file stored next to the result.
type Attachment struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Type   string `json:"type"`
}

// Link points from a result or container to an external resource.
type Link struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Type string `json:"type,omitempty"`
}

// Container mirrors an Allure `*-container.json` document. It groups the
// results of one run under the suite name.
type Container struct {
	UUID     string   `json:"uuid"`
	Name     string   `json:"name"`
	Children []string `json:"children"`
	Befores  []Step   `json:"befores"`
	Afters   []Step   `json:"afters"`
	Links    []Link   `json:"links"`
}

// NewContainer groups children under name.
func NewContainer(id, name string, children []string) Container {
	return Container{
		UUID:     id,
		Name:     name,
		Children: append([]string{}, children...),
		Befores:  []Step{},
		Afters:   []Step{},
		Links:    []Link{},
	}
}

// Fixed label values describing where results come from.
const (
	FrameworkLabel = "maestro"
	LanguageLabel  = "yaml"
)

// HistoryID derives the stable identifier Allure uses to link runs of the
// same test across reports.
func HistoryID(suite, name string) string {
	sum := md5.Sum([]byte(suite + "#" + name))
	return hex.EncodeToString(sum[:])
}

// Build converts a flow result into an Allure result identified by id.
func Build(id string, res report.TestResult) Result {
	spans := report.Schedule(res.Start, res.Steps)
	start, stop := report.Bounds(res.Start, spans)

	out := Result{
		UUID:        id,
		HistoryID:   HistoryID(res.Suite, res.Name),
		TestCaseID:  HistoryID(res.Suite, res.Name),
		Name:        res.Name,
		FullName:    fullName(res.Suite, res.Name),
		Status:      string(res.Status),
		Stage:       StageFinished,
		Steps:       buildSteps(res.Steps, spans),
		Labels:      buildLabels(res),
		Parameters:  []Parameter{},
		Attachments: []Attachment{},
		Start:       start.UnixMilli(),
		Stop:        stop.UnixMilli(),
	}

	if failed, ok := report.FirstFailure(res.Steps); ok {
		msg := failed.Name
		if failed.Error != "" {
			msg = failed.Name + ": " + firstLine(failed.Error)
		}
		out.StatusDetails = &StatusDetails{Message: msg, Trace: failed.Error}
	}

	return out
}

// buildSteps nests steps under their parents, keeping log order among
// siblings. A parent index that does not point backwards is treated as top
// level.
func buildSteps(steps []report.StepEvent, spans []report.Span) []Step {
	children := make([][]int, len(steps)+1)
	for i, step := range steps {
		p := step.Parent
		if p < 0 || p > i {
			p = 0
		}
		children[p] = append(children[p], i)
	}

	var build func(parent int) []Step
	build = func(parent int) []Step {
		out := make([]Step, 0, len(children[parent]))
		for _, i := range children[parent] {
			step := steps[i]
			s := Step{
				Name:        step.Name,
				Status:      string(step.Status),
				Stage:       StageFinished,
				Steps:       build(i + 1),
				Attachments: []Attachment{},
				Parameters:  []Parameter{},
				Start:       spans[i].Start.UnixMilli(),
				Stop:        spans[i].Stop.UnixMilli(),
			}
			if step.Error != "" {
				s.StatusDetails = details(step.Error)
			}
			out = append(out, s)
		}
		return out
	}
	return build(0)
}

func fullName(suite, name string) string {
	if suite == "" {
		return name
	}
	return suite + "." + name
}

func buildLabels(res report.TestResult) []Label {
	labels := []Label{
		{Name: "suite", Value: res.Suite},
		{Name: "framework", Value: FrameworkLabel},
		{Name: "language", Value: LanguageLabel},
	}
	keys := make([]string, 0, len(res.Labels))
	for k := range res.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		labels = append(labels, Label{Name: k, Value: res.Labels[k]})
	}
	for _, tag := range res.Tags {
		labels = append(labels, Label{Name: "tag", Value: tag})
	}
	return labels
}

func details(detail string) *StatusDetails {
	return &StatusDetails{Message: firstLine(detail), Trace: detail}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
