package batch

import (
	"errors"
	"fmt"
)

// Common batch loading errors.
var (
	// ErrInvalidConfiguration is returned before any query runs when the batch
	// size, the specs, or the consumer are unusable.
	ErrInvalidConfiguration = errors.New("invalid batch configuration")

	// ErrDuplicateIdentifier is returned when the primary key set contains the
	// same identifier more than once.
	ErrDuplicateIdentifier = errors.New("duplicate primary identifier")

	// ErrInvalidIdentifier is returned for nil or non-comparable identifier values.
	ErrInvalidIdentifier = errors.New("invalid identifier value")

	// ErrMissingPrimaryRow is returned when the row query does not return a row
	// for an identifier assigned to the batch.
	ErrMissingPrimaryRow = errors.New("primary row missing from batch")

	// ErrProcessorDone is returned by Run on a processor that already finished.
	ErrProcessorDone = errors.New("batch processor already ran")

	// ErrProcessorRunning is returned by Run while another Run is in progress.
	ErrProcessorRunning = errors.New("batch processor is running")
)

// QueryError reports a failed query along with the batch and table it served.
// Batch is 0 for the primary key query, which runs before partitioning.
type QueryError struct {
	Batch int
	Table string
	Query string
	Err   error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	if e.Batch == 0 {
		return fmt.Sprintf("query %q on %s failed: %v", e.Query, e.Table, e.Err)
	}
	return fmt.Sprintf("batch %d: query %q on %s failed: %v", e.Batch, e.Query, e.Table, e.Err)
}

// Unwrap returns the underlying executor error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

func invalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}
