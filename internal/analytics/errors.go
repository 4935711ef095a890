package analytics

import (
	"errors"
	"fmt"
)

// ErrInsufficientHistory indicates that no category had enough monthly
// history to train a model. Callers are expected to catch it and degrade to
// an empty forecast rather than failing the whole analysis.
var ErrInsufficientHistory = errors.New("insufficient history for forecasting")

// ErrNoModels indicates that forecasting was requested before any model was
// trained or loaded.
var ErrNoModels = errors.New("no trained models available")

// ValidationError indicates a malformed transaction record. It is never
// recovered locally because it means the upstream extraction or labeling
// contract was violated.
type ValidationError struct {
	Index int
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("transaction %d: missing or invalid %s", e.Index, e.Field)
}

// IsValidationError returns true if the error is a transaction validation error.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// PersistenceError indicates a missing or corrupt saved model. It is surfaced
// distinctly from training errors so callers can tell "never trained" apart
// from bad input.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("model persistence failed for %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsPersistenceError returns true if the error is a model persistence error.
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
