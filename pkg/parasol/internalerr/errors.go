package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidConfig    = errors.New("invalid configuration")

	// Document extraction
	ErrEmptyDocument     = errors.New("empty document")
	ErrMalformedDocument = errors.New("malformed document")
	ErrNoPurpose         = errors.New("no purpose clauses")

	// Job control
	ErrAlreadyRunning = errors.New("import already running")
	ErrNotRunning     = errors.New("import not running")
)

// IsSkippable reports whether err marks a record that should be skipped
// rather than counted as a failure.
func IsSkippable(err error) bool {
	return errors.Is(err, ErrEmptyDocument) ||
		errors.Is(err, ErrMalformedDocument) ||
		errors.Is(err, ErrNoPurpose)
}
