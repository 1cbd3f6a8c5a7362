package runner

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/bgricker/flowreport/internal/provider"
)

// Run states reported per flow.
const (
	RunPassed = "passed"
	RunFailed = "failed"
	RunError  = "error"
	RunDryRun = "dry-run"
)

// FlowRun records how one flow execution went.
type FlowRun struct {
	Flow       string        `json:"flow"`
	Path       string        `json:"path"`
	Dir        string        `json:"dir"`
	LogPath    string        `json:"log_path,omitempty"`
	Status     string        `json:"status"`
	ExitCode   int           `json:"exit_code,omitempty"`
	Message    string        `json:"message,omitempty"`
	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"duration_ms"`
}

// Orchestrator runs flows one after another, each into its own directory
// under the logs root so the batch converter can pick them up.
type Orchestrator struct {
	runner   FlowRunner
	logsRoot string
	logger   arbor.ILogger
	now      func() time.Time
}

// NewOrchestrator wires runner to logsRoot. A nil logger discards output.
func NewOrchestrator(runner FlowRunner, logsRoot string, logger arbor.ILogger) *Orchestrator {
	if logger == nil {
		logger = arbor.NewNoOpLogger()
	}
	return &Orchestrator{runner: runner, logsRoot: logsRoot, logger: logger, now: time.Now}
}

// Run executes flows sequentially. Flow failures are recorded, not returned;
// only a cancelled context stops the loop early.
func (o *Orchestrator) Run(ctx context.Context, flows []provider.Flow) ([]FlowRun, error) {
	runs := make([]FlowRun, 0, len(flows))
	for _, flow := range flows {
		if err := ctx.Err(); err != nil {
			return runs, err
		}

		run := FlowRun{
			Flow: flow.Key(),
			Path: flow.Path,
			Dir:  filepath.Join(o.logsRoot, flow.Key()),
		}
		o.logger.Info().Str("flow", run.Flow).Str("dir", run.Dir).Msg("running flow")

		start := o.now()
		logPath, err := o.runner.RunFlow(ctx, flow, run.Dir)
		run.Duration = o.now().Sub(start)
		run.DurationMS = run.Duration.Milliseconds()
		run.LogPath = logPath

		var flowErr *FlowError
		switch {
		case err == nil && logPath == "":
			run.Status = RunDryRun
		case err == nil:
			run.Status = RunPassed
		case errors.As(err, &flowErr):
			run.Status = RunFailed
			run.ExitCode = flowErr.ExitCode
			run.Message = flowErr.Error()
		case errors.Is(err, ErrFlowFailed):
			run.Status = RunFailed
			run.Message = err.Error()
		default:
			run.Status = RunError
			run.Message = err.Error()
		}

		if run.Status == RunFailed || run.Status == RunError {
			o.logger.Warn().Str("flow", run.Flow).Str("status", run.Status).Msg(run.Message)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// Failed counts runs that did not pass.
func Failed(runs []FlowRun) int {
	n := 0
	for _, r := range runs {
		if r.Status == RunFailed || r.Status == RunError {
			n++
		}
	}
	return n
}
