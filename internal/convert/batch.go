package convert

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bgricker/flowreport/internal/discovery"
	"github.com/bgricker/flowreport/internal/provider"
	"github.com/bgricker/flowreport/internal/provider/filter"
	"github.com/bgricker/flowreport/internal/report"
)

// BatchOptions narrow and decorate a batch run.
type BatchOptions struct {
	// Filter selects flow directories by name; rejected ones are not counted.
	Filter filter.Set
	// Flows supplies flow metadata keyed by flow directory name.
	Flows map[string]provider.Flow
}

type batchItem struct {
	entry   discovery.Entry
	outcome report.FlowOutcome
	id      string
	err     error
}

// Batch converts every flow directory under root. Directories without the
// log file are skipped with a warning; per-flow failures are recorded and
// never stop sibling flows. An IOError aborts the run. When nothing was
// converted the summary is returned together with ErrBatchEmpty. Results
// written by the run are grouped in one container named after the suite.
func (c *Converter) Batch(ctx context.Context, root string, opts BatchOptions) (summary report.Summary, err error) {
	summary.Suite = c.opts.Suite
	started := c.opts.Now()
	defer func() {
		summary.Duration = c.opts.Now().Sub(started)
		summary.DurationMS = summary.Duration.Milliseconds()
	}()

	if err = c.Prepare(); err != nil {
		return summary, err
	}

	entries, err := discovery.FlowLogs(root, c.opts.LogName)
	if err != nil {
		return summary, err
	}

	items := make([]batchItem, 0, len(entries))
	for _, entry := range entries {
		if !opts.Filter.Allows(entry.Name) {
			c.opts.Logger.Debug().Str("flow", entry.Name).Msg("flow filtered out")
			continue
		}
		items = append(items, batchItem{entry: entry})
	}

	runErr := c.runItems(ctx, items, opts)
	var ids []string
	for _, item := range items {
		if item.outcome.Outcome != "" {
			summary.Record(item.outcome)
		}
		if item.id != "" {
			ids = append(ids, item.id)
		}
	}
	if len(ids) > 0 {
		if _, cerr := c.writeContainer(c.opts.Suite, ids); cerr != nil && runErr == nil {
			runErr = cerr
		}
	}
	if runErr != nil {
		return summary, runErr
	}

	c.opts.Logger.Info().
		Str("suite", summary.Suite).
		Int("converted", summary.Converted).
		Int("skipped", summary.Skipped).
		Int("errors", summary.Errors).
		Msg("batch conversion finished")

	if summary.Converted == 0 {
		return summary, ErrBatchEmpty
	}
	return summary, nil
}

func (c *Converter) runItems(ctx context.Context, items []batchItem, opts BatchOptions) error {
	if c.opts.Workers <= 1 || len(items) <= 1 {
		for i := range items {
			c.convertItem(ctx, &items[i], opts)
			if IsIOError(items[i].err) {
				return items[i].err
			}
		}
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		fatalErr error
	)
	sem := make(chan struct{}, c.opts.Workers)
	for i := range items {
		if ctx.Err() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(item *batchItem) {
			defer wg.Done()
			defer func() { <-sem }()
			if ctx.Err() != nil {
				return
			}
			c.convertItem(ctx, item, opts)
			if IsIOError(item.err) {
				once.Do(func() {
					fatalErr = item.err
					cancel()
				})
			}
		}(&items[i])
	}
	wg.Wait()
	return fatalErr
}

func (c *Converter) convertItem(ctx context.Context, item *batchItem, opts BatchOptions) {
	entry := item.entry
	if entry.Missing {
		c.opts.Logger.Warn().
			Str("flow", entry.Name).
			Str("path", entry.LogPath).
			Msg("flow log missing, skipping")
		item.outcome = report.FlowOutcome{
			Flow:    entry.Name,
			Outcome: report.OutcomeSkipped,
			Message: fmt.Sprintf("%s not found", c.opts.LogName),
		}
		return
	}

	req := Request{Name: entry.Name}
	if flow, ok := opts.Flows[entry.Name]; ok {
		req.Labels = flow.Labels()
		req.Tags = flow.Tags
	}

	res, err := c.convertFile(ctx, entry.LogPath, req)
	if err != nil {
		item.err = err
		outcome := report.OutcomeError
		if errors.Is(err, ErrNotFound) {
			outcome = report.OutcomeSkipped
		}
		if !IsIOError(err) {
			c.opts.Logger.Warn().Err(err).Str("flow", entry.Name).Msg("flow conversion failed")
		}
		item.outcome = report.FlowOutcome{Flow: entry.Name, Outcome: outcome, Message: err.Error()}
		return
	}

	item.id = res.ID
	item.outcome = report.FlowOutcome{
		Flow:       entry.Name,
		Outcome:    report.OutcomeConverted,
		Status:     res.Test.Status,
		Steps:      len(res.Test.Steps),
		ResultFile: res.Path,
	}
}
