package query

import (
	"errors"
	"fmt"
)

// Precondition failures. A *UsageError wraps one of these and matches it
// with errors.Is.
var (
	ErrNoTable     = errors.New("table name not specified; call From or To first")
	ErrNoTarget    = errors.New("write target not specified; call To first")
	ErrDanglingOr  = errors.New("OrWhere needs a prior condition")
	ErrInvalidPage = errors.New("perPage and page must be positive integers")
)

// UsageError reports that a builder chain broke a precondition. It is always
// returned before anything is sent to the execution service.
type UsageError struct {
	Op  string
	Err error
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UsageError) Unwrap() error {
	return e.Err
}

// IsUsageError returns true if err is or wraps a *UsageError.
func IsUsageError(err error) bool {
	var ue *UsageError
	return errors.As(err, &ue)
}

func usage(op string, err error) *UsageError {
	return &UsageError{Op: op, Err: err}
}
