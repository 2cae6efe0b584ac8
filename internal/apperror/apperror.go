package apperror

import (
	"errors"
)

// Kind decides what the worker loop does with a message after a failure.
type Kind string

const (
	KindParse       Kind = "parse"
	KindContract    Kind = "contract"
	KindTransient   Kind = "transient"
	KindNoProcessor Kind = "no_processor"
)

// Retryable reports whether the message should be left on the queue for
// redelivery. Contract errors are retried because the loop cannot tell a
// missing tag from one that has not been written yet.
func (k Kind) Retryable() bool {
	switch k {
	case KindParse, KindNoProcessor:
		return false
	default:
		return true
	}
}

type Error struct {
	Code     string
	Message  string
	Kind     Kind
	Internal error
}

func (e *Error) Error() string {
	if e.Internal != nil {
		return e.Message + ": " + e.Internal.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Internal
}

// Is matches on Code so wrapped copies of a sentinel compare equal to it.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && t.Internal == nil
}

// CodeUnclassified is what Code reports for errors outside this package.
const CodeUnclassified = "transient_error"

func New(code, message string, kind Kind) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Kind:    kind,
	}
}

func Wrap(err error, appErr *Error) *Error {
	return &Error{
		Code:     appErr.Code,
		Message:  appErr.Message,
		Kind:     appErr.Kind,
		Internal: err,
	}
}

// KindOf classifies err by the first *Error in its chain. Anything
// unclassified is transient.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindTransient
}

func Code(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnclassified
}
