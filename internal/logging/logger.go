// Package logging builds the process logger.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
)

const timeFormat = "15:04:05"

// Options select the log writers and level.
type Options struct {
	Level string
	// Console writes text logs to the terminal. Disabled for JSON output so
	// stdout stays machine readable.
	Console bool
	// File, when set, additionally writes logs to that path.
	File string
}

// New builds an arbor logger from opts. With no writer selected the logger
// discards everything.
func New(opts Options) (arbor.ILogger, error) {
	if !opts.Console && opts.File == "" {
		return arbor.NewNoOpLogger(), nil
	}

	logger := arbor.NewLogger()
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, fmt.Errorf("create log dir for %q: %w", opts.File, err)
		}
		logger = logger.WithFileWriter(models.WriterConfiguration{
			Type:             models.LogWriterTypeFile,
			FileName:         opts.File,
			TimeFormat:       timeFormat,
			MaxSize:          10 * 1024 * 1024,
			MaxBackups:       3,
			TextOutput:       true,
			DisableTimestamp: false,
		})
	}
	if opts.Console {
		logger = logger.WithConsoleWriter(models.WriterConfiguration{
			Type:             models.LogWriterTypeConsole,
			TimeFormat:       timeFormat,
			TextOutput:       true,
			DisableTimestamp: false,
		})
	}

	level := opts.Level
	if level == "" {
		level = "warn"
	}
	return logger.WithLevelFromString(level), nil
}
