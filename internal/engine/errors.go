package engine

import (
	"errors"
	"fmt"
)

// ServiceError is a failure reported by the execution service inside a
// response envelope.
type ServiceError struct {
	// Code identifies the error category.
	Code ServiceErrorCode

	// Message is a human-readable description.
	Message string
}

// ServiceErrorCode categorizes service errors.
type ServiceErrorCode string

const (
	// ErrCodeNotInitialized indicates execute arrived before initialize.
	ErrCodeNotInitialized ServiceErrorCode = "NOT_INITIALIZED"

	// ErrCodeInitFailed indicates storage could not be opened or provisioned.
	ErrCodeInitFailed ServiceErrorCode = "INIT_FAILED"

	// ErrCodeExecFailed indicates the SQL statement was rejected or failed.
	ErrCodeExecFailed ServiceErrorCode = "EXEC_FAILED"

	// ErrCodeBadRequest indicates an undecodable or unknown message.
	ErrCodeBadRequest ServiceErrorCode = "BAD_REQUEST"
)

// Error implements the error interface.
func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsExecError returns true if the error is a statement execution failure.
// Uses errors.As to handle wrapped errors.
func IsExecError(err error) bool {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Code == ErrCodeExecFailed
	}
	return false
}

func newServiceError(code ServiceErrorCode, format string, args ...any) *ServiceError {
	return &ServiceError{Code: code, Message: fmt.Sprintf(format, args...)}
}
