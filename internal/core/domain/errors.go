package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Concrete failures wrap one of these, so callers match with
// errors.Is while Error() carries the human message.
var (
	ErrDuplicateEmail = errors.New("duplicate email")
	ErrInvalidFormat  = errors.New("invalid format")
	ErrInvalidValue   = errors.New("invalid value")
	ErrNotFound       = errors.New("not found")
	ErrPartialMatch   = errors.New("partial match")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// Errorf returns an error of the given kind with a formatted message.
func Errorf(kind error, format string, args ...any) error {
	return &kindError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Kind reports which error kind err belongs to, or nil for errors outside
// the domain (infrastructure failures).
func Kind(err error) error {
	for _, kind := range []error{ErrDuplicateEmail, ErrInvalidFormat, ErrInvalidValue, ErrNotFound, ErrPartialMatch} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
