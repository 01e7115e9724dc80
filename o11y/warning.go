package o11y

import (
	"context"
	"errors"
)

// warnings all wrap this sentinel so IsWarning can spot them with errors.Is
var errWarning = errors.New("")

// NewWarning returns an error that the span helpers treat as a warning: it
// is counted and recorded on the span but does not flag the trace as
// errored. Two warnings are never Is-equal to each other, only to the
// sentinel.
func NewWarning(warn string) error {
	return &warning{
		msg: warn,
		err: errWarning,
	}
}

// IsWarning reports whether any error in the chain is a warning.
func IsWarning(err error) bool {
	return errors.Is(err, errWarning)
}

// IsWarningNoUnwrap reports whether err itself is the warning sentinel,
// without walking the chain. Custom Is methods use it to notice they are
// being asked about warning-ness rather than matched against a real error.
func IsWarningNoUnwrap(err error) bool {
	// nolint: errorlint // deliberately not unwrapping, see above
	return err == errWarning
}

// DontErrorTrace reports whether err is one of the quiet failures (a
// warning, a cancelled context or a missed deadline) that should not mark
// the whole trace as errored.
func DontErrorTrace(err error) bool {
	return IsWarning(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

type warning struct {
	msg string
	err error
}

func (e *warning) Error() string {
	return e.msg
}

func (e *warning) Unwrap() error {
	return e.err
}
