package allure

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bgricker/flowreport/internal/report"
)

func sampleResult() report.TestResult {
	base := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	return report.TestResult{
		Name:   "login",
		Suite:  "smoke",
		Status: report.StatusFailed,
		Start:  base,
		Steps: []report.StepEvent{
			{Status: report.StatusPassed, Name: "Launch app", Duration: time.Second, HasDuration: true},
			{Status: report.StatusFailed, Name: "Assert welcome text", Error: "Element not found\nat Orchestra"},
		},
		Labels: map[string]string{"feature": "auth"},
		Tags:   []string{"smoke", "android"},
	}
}

func TestBuild(t *testing.T) {
	doc := Build("id-1", sampleResult())

	assert.Equal(t, "id-1", doc.UUID)
	assert.Equal(t, "login", doc.Name)
	assert.Equal(t, "smoke.login", doc.FullName)
	assert.Equal(t, "failed", doc.Status)
	assert.Equal(t, StageFinished, doc.Stage)
	assert.Equal(t, HistoryID("smoke", "login"), doc.HistoryID)
	assert.Len(t, doc.HistoryID, 32)

	require.Len(t, doc.Steps, 2)
	assert.Equal(t, "passed", doc.Steps[0].Status)
	assert.Nil(t, doc.Steps[0].StatusDetails)
	assert.Equal(t, doc.Steps[0].Stop-doc.Steps[0].Start, int64(1000))
	require.NotNil(t, doc.Steps[1].StatusDetails)
	assert.Equal(t, "Element not found", doc.Steps[1].StatusDetails.Message)
	assert.Equal(t, "Element not found\nat Orchestra", doc.Steps[1].StatusDetails.Trace)

	require.NotNil(t, doc.StatusDetails)
	assert.Equal(t, "Assert welcome text: Element not found", doc.StatusDetails.Message)

	assert.Equal(t, []Label{
		{Name: "suite", Value: "smoke"},
		{Name: "framework", Value: FrameworkLabel},
		{Name: "language", Value: LanguageLabel},
		{Name: "feature", Value: "auth"},
		{Name: "tag", Value: "smoke"},
		{Name: "tag", Value: "android"},
	}, doc.Labels)
}

func TestBuildNoSteps(t *testing.T) {
	doc := Build("id-2", report.TestResult{Name: "empty", Suite: "s", Status: report.StatusUnknown})
	assert.Equal(t, "unknown", doc.Status)
	assert.NotNil(t, doc.Steps)
	assert.Empty(t, doc.Steps)
	assert.Nil(t, doc.StatusDetails)
	assert.Equal(t, int64(0), doc.Start)

	data, err := Encode(doc)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"steps": []`)
}

func TestWriterWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "allure-results")
	w := NewWriter(dir)
	require.NoError(t, w.Prepare())

	path, err := w.Write(sampleResult(), WriteOptions{RawLog: []byte("✓ Launch app\n")})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, ResultSuffix))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc Result
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, strings.TrimSuffix(filepath.Base(path), ResultSuffix), doc.UUID)

	require.Len(t, doc.Attachments, 1)
	att, err := os.ReadFile(filepath.Join(dir, doc.Attachments[0].Source))
	require.NoError(t, err)
	assert.Equal(t, "✓ Launch app\n", string(att))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestWriterNeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	w.newID = func() string { return "fixed" }

	_, err := w.Write(sampleResult(), WriteOptions{})
	require.NoError(t, err)
	_, err = w.Write(sampleResult(), WriteOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrExist)
}

func TestWriterIdempotentExceptToken(t *testing.T) {
	first := NewWriter(t.TempDir())
	second := NewWriter(t.TempDir())

	p1, err := first.Write(sampleResult(), WriteOptions{RawLog: []byte("log")})
	require.NoError(t, err)
	p2, err := second.Write(sampleResult(), WriteOptions{RawLog: []byte("log")})
	require.NoError(t, err)

	id1 := strings.TrimSuffix(filepath.Base(p1), ResultSuffix)
	id2 := strings.TrimSuffix(filepath.Base(p2), ResultSuffix)
	require.NotEqual(t, id1, id2)

	b1, err := os.ReadFile(p1)
	require.NoError(t, err)
	b2, err := os.ReadFile(p2)
	require.NoError(t, err)
	assert.Equal(t, b1, bytes.ReplaceAll(b2, []byte(id2), []byte(id1)))
}

func TestWriterPrepareFailsOnFile(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "results")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	err := NewWriter(blocker).Prepare()
	require.Error(t, err)
}

func TestWriteEnvironment(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	require.NoError(t, w.WriteEnvironment(map[string]string{"platform": "android", "device": "pixel"}))

	data, err := os.ReadFile(filepath.Join(dir, EnvironmentFile))
	require.NoError(t, err)
	assert.Equal(t, "device=pixel\nplatform=android\n", string(data))

	require.NoError(t, NewWriter(t.TempDir()).WriteEnvironment(nil))
}

func TestWriteEnvironmentKeepsExistingKeys(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, EnvironmentFile),
		[]byte("# earlier run\nbuild=42\nplatform=ios\n"), 0o644))

	w := NewWriter(dir)
	require.NoError(t, w.WriteEnvironment(map[string]string{"platform": "android"}))
	require.NoError(t, w.WriteEnvironment(map[string]string{"device": "pixel"}))

	data, err := os.ReadFile(filepath.Join(dir, EnvironmentFile))
	require.NoError(t, err)
	assert.Equal(t, "build=42\ndevice=pixel\nplatform=android\n", string(data))
}

func TestWriteContainer(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	p1, err := w.Write(sampleResult(), WriteOptions{})
	require.NoError(t, err)
	p2, err := w.Write(sampleResult(), WriteOptions{})
	require.NoError(t, err)
	ids := []string{ResultID(p1), ResultID(p2)}

	path, err := w.WriteContainer("smoke", ids)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, ContainerSuffix))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, strings.TrimSuffix(filepath.Base(path), ContainerSuffix), doc["uuid"])
	assert.Equal(t, "smoke", doc["name"])
	assert.Equal(t, []any{ids[0], ids[1]}, doc["children"])
	assert.Equal(t, []any{}, doc["befores"])
	assert.Equal(t, []any{}, doc["afters"])
	assert.Equal(t, []any{}, doc["links"])
}

func TestWriteContainerEmpty(t *testing.T) {
	path, err := NewWriter(t.TempDir()).WriteContainer("smoke", nil)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"children": []`)
}
