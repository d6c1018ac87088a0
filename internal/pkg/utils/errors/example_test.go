package errors_test

import (
	"fmt"

	"github.com/keboola/lockstep-cluster/internal/pkg/utils/errors"
)

func ExampleNew() {
	fmt.Println(errors.New("some error"))
	// output:
	// some error
}

func ExampleErrorf() {
	err := errors.Errorf("enhanced error message: %w", errors.New("original error"))
	fmt.Println(err)
	// output:
	// enhanced error message: original error
}

func ExampleWrap() {
	err := errors.Wrap(errors.New("original error"), "new error message")
	fmt.Println(errors.Format(err, errors.FormatWithUnwrap()))
	// output:
	// new error message (*errors.wrappedError):
	// - original error
}

func ExamplePrefixError() {
	err := errors.PrefixError(errors.New("connection refused"), "cannot connect to the root")
	fmt.Println(err)
	// output:
	// cannot connect to the root: connection refused
}

func ExampleNewMultiError() {
	errs := errors.NewMultiError()
	errs.Append(errors.New("worker 1 is gone"))
	errs.Append(errors.New("worker 2 is gone"))
	fmt.Println(errs.ErrorOrNil())
	// output:
	// - worker 1 is gone
	// - worker 2 is gone
}
