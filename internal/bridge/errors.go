package bridge

import (
	"errors"
	"fmt"
)

// ChannelError reports that the message channel itself failed: the execution
// context crashed, the transport was severed, or the connection was closed.
// It is never retried; the execution context must be relaunched.
type ChannelError struct {
	Err error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("channel error: %v", e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// IsChannelError returns true if err is or wraps a *ChannelError.
func IsChannelError(err error) bool {
	var ce *ChannelError
	return errors.As(err, &ce)
}

// InitError reports that the service refused to initialize.
type InitError struct {
	Message string
}

func (e *InitError) Error() string {
	return fmt.Sprintf("initialize failed: %s", e.Message)
}
