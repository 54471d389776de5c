package schedule

import (
	"errors"
	"fmt"
)

// Error types
type ErrorType string

const (
	ErrInvalidStartDate ErrorType = "invalid_start_date"
	ErrInvalidEndDate   ErrorType = "invalid_end_date"
)

// Error is returned by the generator when the requested range is unusable.
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Type, so errors.Is(err, &Error{Type: ErrInvalidEndDate})
// works regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Type == e.Type
}

// IsErrorType reports whether err is, or wraps, a generator error of type t.
func IsErrorType(err error, t ErrorType) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == t
}
