package apperr

import "fmt"

// Error carries a stable machine-readable code of the form
// "<operation>.<reason>" alongside the underlying cause.
type Error struct {
	code string
	err  error
}

// New wraps cause with an operation-scoped reason code.
func New(operation, reason string, cause error) error {
	return &Error{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

func (e *Error) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *Error) Unwrap() error {
	return e.err
}

// Code returns the stable error code.
func (e *Error) Code() string {
	return e.code
}
