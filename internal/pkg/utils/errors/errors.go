// Package errors extends the standard errors package with stack traces, multi errors and nested errors.
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

type StackTrace []uintptr

type stackTracer interface {
	StackTrace() StackTrace
}

type withStack struct {
	error
	trace StackTrace
}

type wrappedError struct {
	msg   string
	cause error
	trace StackTrace
}

func New(msg string) error {
	return &withStack{error: errors.New(msg), trace: callers()}
}

func Errorf(format string, a ...any) error {
	return &withStack{error: fmt.Errorf(format, a...), trace: callers()} // nolint: forbidigo
}

// Wrap returns an error with a new message, the cause is accessible by Unwrap, but it is not part of the message.
func Wrap(cause error, msg string) error {
	return &wrappedError{msg: msg, cause: cause, trace: callers()}
}

func Wrapf(cause error, format string, a ...any) error {
	return &wrappedError{msg: fmt.Sprintf(format, a...), cause: cause, trace: callers()}
}

// WithStack adds the stack trace to the error, if it is not already present.
func WithStack(err error) error {
	if err == nil {
		return nil
	}
	var tracer stackTracer
	if As(err, &tracer) {
		return err
	}
	return &withStack{error: err, trace: callers()}
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func Unwrap(err error) error {
	return errors.Unwrap(err)
}

func (e *withStack) Unwrap() error {
	return e.error
}

func (e *withStack) StackTrace() StackTrace {
	return e.trace
}

func (e *wrappedError) Error() string {
	return e.msg
}

func (e *wrappedError) Unwrap() error {
	return e.cause
}

func (e *wrappedError) StackTrace() StackTrace {
	return e.trace
}

func callers() StackTrace {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	return pcs[0:n]
}
