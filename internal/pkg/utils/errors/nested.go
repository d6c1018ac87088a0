package errors

// NestedError is a main error with sub-errors, for example "cannot stop workers" with one error per worker.
// It is formatted on one line, if it is short and there is only one sub-error, otherwise as a bullet list.
type NestedError interface {
	Error() string
	Unwrap() []error
	StackTrace() StackTrace
	Len() int
	Append(errs ...error)
	MainError() error
	WrappedErrors() []error
}

type nestedErrorGetter interface {
	MainError() error
	WrappedErrors() []error
}

type nestedError struct {
	main  error
	subs  MultiError
	trace StackTrace
}

// PrefixError prefixes the error, for example: "cannot dispatch command \"stopWorker\": connection lost".
func PrefixError(err error, prefix string) error {
	return NewNestedError(New(prefix), err)
}

func PrefixErrorf(err error, format string, a ...any) error {
	return NewNestedError(Errorf(format, a...), err)
}

func NewNestedError(main error, subErrs ...error) NestedError {
	if main == nil {
		panic("error cannot be nil")
	}
	subs := NewMultiError()
	subs.Append(subErrs...)
	return &nestedError{main: main, subs: subs, trace: callers()}
}

func (e *nestedError) Error() string {
	return Format(e)
}

// Unwrap returns the main error first, so errors.Is and errors.As see both the prefix and the cause.
func (e *nestedError) Unwrap() []error {
	return append([]error{e.main}, e.subs.WrappedErrors()...)
}

func (e *nestedError) StackTrace() StackTrace { return e.trace }

func (e *nestedError) Len() int { return e.subs.Len() }

func (e *nestedError) Append(errs ...error) { e.subs.Append(errs...) }

func (e *nestedError) MainError() error { return e.main }

func (e *nestedError) WrappedErrors() []error { return e.subs.WrappedErrors() }
