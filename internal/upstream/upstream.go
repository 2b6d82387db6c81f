package upstream

import (
	"errors"
	"fmt"
)

// ErrUnavailable marks a failure of an external service: unreachable, timed out,
// or answering with an error. Callers match it with errors.Is.
var ErrUnavailable = errors.New("upstream unavailable")

// Error records which upstream operation failed.
type Error struct {
	Op  string
	Err error
}

// Unavailable wraps err as an upstream failure of op.
func Unavailable(op string, err error) error {
	return &Error{Op: op, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrUnavailable }
