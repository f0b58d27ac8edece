package process

import (
	"errors"
	"fmt"
)

// Error is a named domain error raised by a task handler or a throw-error
// node. It represents a saga-level business outcome and is routed to a
// compensation path, unlike engine errors, which are fatal to the
// triggering call.
type Error struct {
	Code    string
	Message string
}

// NewError returns a domain error with the given code.
func NewError(code, format string, args ...any) Error {
	return Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// AsError extracts a domain error from an error chain.
func AsError(err error) (Error, bool) {
	var de Error
	ok := errors.As(err, &de)
	return de, ok
}
