package convert

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks a flow whose log does not exist. In a batch the flow is
	// reported and the remaining flows still convert.
	ErrNotFound = errors.New("flow log not found")

	// ErrBatchEmpty means a batch ran to completion without converting any flow.
	ErrBatchEmpty = errors.New("no flows converted")
)

// IOError reports that the results directory could not be created or
// written. It aborts the whole run since no output can be produced.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// IsIOError reports whether err carries an *IOError.
func IsIOError(err error) bool {
	var ioErr *IOError
	return errors.As(err, &ioErr)
}
