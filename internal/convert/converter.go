// Package convert turns flow logs into Allure results, one flow at a time or
// as a batch over a directory of per-flow log folders.
package convert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/bgricker/flowreport/internal/allure"
	"github.com/bgricker/flowreport/internal/logparse"
	"github.com/bgricker/flowreport/internal/report"
	"github.com/bgricker/flowreport/internal/source"
)

// Options configure a Converter.
type Options struct {
	OutputDir string
	Suite     string
	LogName   string
	AttachLog bool
	Workers   int
	Logger    arbor.ILogger
	Loader    *source.Loader
	Now       func() time.Time
}

// Converter writes one Allure result per flow log into OutputDir.
type Converter struct {
	opts   Options
	writer *allure.Writer

	prepareOnce sync.Once
	prepareErr  error
}

// New creates a converter with the supplied options.
func New(opts Options) *Converter {
	if opts.LogName == "" {
		opts.LogName = source.DefaultLogName
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Logger == nil {
		opts.Logger = arbor.NewNoOpLogger()
	}
	if opts.Loader == nil {
		opts.Loader = source.NewLoader()
	}
	opts.Loader.LogName = opts.LogName
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Converter{opts: opts, writer: allure.NewWriter(opts.OutputDir)}
}

// Request describes one flow to convert. Empty fields fall back to the
// converter's suite and to values derived from the log itself.
type Request struct {
	Name   string
	Suite  string
	Start  time.Time
	Labels map[string]string
	Tags   []string
}

// Result is the outcome of converting one flow. ID is the uuid of the written
// result; Container is the container file grouping it, when one was written.
type Result struct {
	ID        string
	Path      string
	Container string
	Test      report.TestResult
	Ignored   int
}

// Prepare creates the output directory once. Failures are IOErrors.
func (c *Converter) Prepare() error {
	c.prepareOnce.Do(func() {
		if err := c.writer.Prepare(); err != nil {
			c.prepareErr = &IOError{Op: "prepare results dir", Path: c.writer.Dir(), Err: err}
		}
	})
	return c.prepareErr
}

// ConvertText parses a log held in memory and writes its result together
// with a container for it.
func (c *Converter) ConvertText(text string, req Request) (Result, error) {
	res, err := c.convert(report.FlowLog{Name: req.Name, Content: text}, req)
	if err != nil {
		return res, err
	}
	return c.contain(res)
}

// ConvertFile loads the log behind locator and writes its result together
// with a container for it. A missing log yields an error matching ErrNotFound.
func (c *Converter) ConvertFile(ctx context.Context, locator string, req Request) (Result, error) {
	res, err := c.convertFile(ctx, locator, req)
	if err != nil {
		return res, err
	}
	return c.contain(res)
}

func (c *Converter) convertFile(ctx context.Context, locator string, req Request) (Result, error) {
	log, err := c.opts.Loader.Load(ctx, locator)
	if err != nil {
		if source.IsNotFound(err) {
			return Result{}, fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		return Result{}, err
	}
	return c.convert(log, req)
}

func (c *Converter) contain(res Result) (Result, error) {
	path, err := c.writeContainer(res.Test.Suite, []string{res.ID})
	if err != nil {
		return res, err
	}
	res.Container = path
	return res, nil
}

func (c *Converter) writeContainer(suite string, ids []string) (string, error) {
	path, err := c.writer.WriteContainer(suite, ids)
	if err != nil {
		return "", &IOError{Op: "write container", Path: c.writer.Dir(), Err: err}
	}
	return path, nil
}

func (c *Converter) convert(log report.FlowLog, req Request) (Result, error) {
	if err := c.Prepare(); err != nil {
		return Result{}, err
	}

	name := req.Name
	if name == "" {
		name = log.Name
	}
	suite := req.Suite
	if suite == "" {
		suite = c.opts.Suite
	}
	start := req.Start
	if start.IsZero() {
		start = log.ModTime
	}
	if start.IsZero() {
		start = c.opts.Now()
	}

	parsed := logparse.Parse(log.Content)
	_, stop := report.Bounds(start, report.Schedule(start, parsed.Steps))

	test := report.TestResult{
		Name:   name,
		Suite:  suite,
		Status: report.Aggregate(parsed.Steps),
		Steps:  parsed.Steps,
		Start:  start,
		Stop:   stop,
		Labels: req.Labels,
		Tags:   req.Tags,
		Source: log.Path,
	}
	if failed, ok := report.FirstFailure(parsed.Steps); ok {
		test.Error = failed.Error
	}

	var writeOpts allure.WriteOptions
	if c.opts.AttachLog {
		writeOpts.RawLog = []byte(log.Content)
	}
	path, err := c.writer.Write(test, writeOpts)
	if err != nil {
		return Result{}, &IOError{Op: "write result", Path: c.writer.Dir(), Err: err}
	}

	c.opts.Logger.Debug().
		Str("flow", name).
		Str("status", string(test.Status)).
		Int("steps", len(test.Steps)).
		Int("ignored_lines", parsed.Ignored).
		Msg("converted flow log")

	return Result{ID: allure.ResultID(path), Path: path, Test: test, Ignored: parsed.Ignored}, nil
}

// WriteEnvironment stores run-wide properties next to the results.
func (c *Converter) WriteEnvironment(env map[string]string) error {
	if len(env) == 0 {
		return nil
	}
	if err := c.Prepare(); err != nil {
		return err
	}
	if err := c.writer.WriteEnvironment(env); err != nil {
		return &IOError{Op: "write environment", Path: c.writer.Dir(), Err: err}
	}
	return nil
}
