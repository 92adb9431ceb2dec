package response

import (
	"errors"
	"fmt"
)

type Error struct {
	Code int
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Is(target error) bool {
	var t *Error
	ok := errors.As(target, &t)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Err.Error() == t.Err.Error()
}

func NewError(code int, err string) error {
	return &Error{code, errors.New(err)}
}

// Wrap attaches cause to a status-carrying sentinel. errors.Is and errors.As
// still resolve to the sentinel.
func Wrap(sentinel error, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %v", sentinel, cause)
}

// Code returns the HTTP status carried by err, or 0 if it carries none.
func Code(err error) int {
	var respErr *Error
	if errors.As(err, &respErr) {
		return respErr.Code
	}
	return 0
}

// Message is the client-facing text for err. Statuses below 500 expose only
// the sentinel message; anything else exposes the full chain.
func Message(err error) string {
	var respErr *Error
	if errors.As(err, &respErr) && respErr.Code < 500 {
		return respErr.Error()
	}
	return err.Error()
}
