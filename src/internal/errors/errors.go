// Package errors wraps github.com/pkg/errors so that every error crossing a package boundary
// carries a stack trace, while still supporting the standard library's Is/As/Join.
package errors

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// StackTracer is implemented by errors that carry a stack trace.
type StackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// New returns an error with the supplied message and a stack trace.
func New(message string) error {
	return pkgerrors.New(message)
}

// Errorf formats according to a format specifier and returns an error with a stack trace.  %w is
// supported.
func Errorf(format string, args ...interface{}) error {
	return pkgerrors.WithStack(fmt.Errorf(format, args...)) //nolint:goerr113
}

// Wrap annotates err with a message and a stack trace.  Wrap(nil, ...) is nil.
func Wrap(err error, message string) error {
	return pkgerrors.Wrap(err, message)
}

// Wrapf annotates err with a formatted message and a stack trace.
func Wrapf(err error, format string, args ...interface{}) error {
	return pkgerrors.Wrapf(err, format, args...)
}

// WithStack annotates err with a stack trace at the point WithStack was called.
func WithStack(err error) error {
	return pkgerrors.WithStack(err)
}

// EnsureStack adds a stack trace to err if nothing in its chain already has one.  Use it when
// returning errors from third-party libraries.
func EnsureStack(err error) error {
	if err == nil {
		return nil
	}
	var st StackTracer
	if errors.As(err, &st) {
		return err
	}
	return pkgerrors.WithStack(err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Unwrap returns the next error in err's chain.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// Join returns an error that wraps the given errors, discarding nils.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
