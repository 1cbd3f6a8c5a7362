package allure

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/bgricker/flowreport/internal/report"
)

// File name conventions of an Allure results directory.
const (
	ResultSuffix     = "-result.json"
	ContainerSuffix  = "-container.json"
	AttachmentSuffix = "-attachment.txt"
	EnvironmentFile  = "environment.properties"
)

// Writer stores results in an Allure results directory. File names are
// derived from a fresh uuid per result so concurrent writers and earlier runs
// sharing the directory never collide.
type Writer struct {
	dir   string
	newID func() string
}

// NewWriter creates a Writer for dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, newID: func() string { return uuid.New().String() }}
}

// Dir returns the results directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Prepare creates the results directory and checks that it accepts new files.
func (w *Writer) Prepare() error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create results dir %q: %w", w.dir, err)
	}
	probe, err := os.CreateTemp(w.dir, ".flowreport-*")
	if err != nil {
		return fmt.Errorf("write results dir %q: %w", w.dir, err)
	}
	name := probe.Name()
	probe.Close()
	if err := os.Remove(name); err != nil {
		return fmt.Errorf("clean results dir %q: %w", w.dir, err)
	}
	return nil
}

// WriteOptions controls optional artefacts stored with a result.
type WriteOptions struct {
	// RawLog, when non-nil, is stored as a text attachment of the result.
	RawLog []byte
}

// Write stores res and returns the path of the result file.
func (w *Writer) Write(res report.TestResult, opts WriteOptions) (string, error) {
	id := w.newID()
	doc := Build(id, res)

	if opts.RawLog != nil {
		source := id + AttachmentSuffix
		if err := w.create(source, opts.RawLog); err != nil {
			return "", err
		}
		doc.Attachments = append(doc.Attachments, Attachment{
			Name:   "maestro.log",
			Source: source,
			Type:   "text/plain",
		})
	}

	data, err := Encode(doc)
	if err != nil {
		return "", fmt.Errorf("encode result %q: %w", res.Name, err)
	}
	name := id + ResultSuffix
	if err := w.create(name, data); err != nil {
		return "", err
	}
	return filepath.Join(w.dir, name), nil
}

// ResultID returns the uuid a result file written by Write is named after.
func ResultID(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ResultSuffix)
}

// WriteContainer stores a container grouping the results ids under name and
// returns its path.
func (w *Writer) WriteContainer(name string, ids []string) (string, error) {
	id := w.newID()
	data, err := Encode(NewContainer(id, name, ids))
	if err != nil {
		return "", fmt.Errorf("encode container %q: %w", name, err)
	}
	file := id + ContainerSuffix
	if err := w.create(file, data); err != nil {
		return "", err
	}
	return filepath.Join(w.dir, file), nil
}

// WriteEnvironment stores run-wide key/value pairs shown on the report
// overview. Keys already present in the directory's environment.properties
// are kept unless env sets them again.
func (w *Writer) WriteEnvironment(env map[string]string) error {
	if len(env) == 0 {
		return nil
	}
	path := filepath.Join(w.dir, EnvironmentFile)
	merged, err := readEnvironment(path)
	if err != nil {
		return err
	}
	for k, v := range env {
		merged[k] = v
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s\n", k, merged[k])
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write %q: %w", path, err)
	}
	return nil
}

func readEnvironment(path string) (map[string]string, error) {
	env := map[string]string{}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return env, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		env[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return env, nil
}

// Encode renders a result or container document the way it is stored on disk.
func Encode(doc any) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func (w *Writer) create(name string, data []byte) error {
	path := filepath.Join(w.dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create %q: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %q: %w", path, err)
	}
	return nil
}
