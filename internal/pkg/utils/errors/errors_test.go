package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type customError struct {
	rank int
}

func (e customError) Error() string {
	return "custom"
}

func TestMultiError_ErrorOrNil(t *testing.T) {
	t.Parallel()

	errs := NewMultiError()
	assert.NoError(t, errs.ErrorOrNil())

	errs.Append(nil)
	assert.NoError(t, errs.ErrorOrNil())

	first := New("first")
	errs.Append(first)
	assert.Same(t, first, errs.ErrorOrNil())

	errs.Append(New("second"))
	assert.Equal(t, 2, errs.Len())
	assert.Equal(t, "- first\n- second", errs.ErrorOrNil().Error())
}

func TestMultiError_Flatten(t *testing.T) {
	t.Parallel()

	sub := NewMultiError()
	sub.Append(New("a"), New("b"))

	errs := NewMultiError()
	errs.Append(sub, New("c"))
	assert.Equal(t, 3, errs.Len())
}

func TestPrefixError_Unwrap(t *testing.T) {
	t.Parallel()

	err := PrefixErrorf(customError{rank: 3}, "worker %d failed", 3)
	assert.Equal(t, "worker 3 failed: custom", err.Error())

	var target customError
	assert.True(t, As(err, &target))
	assert.Equal(t, 3, target.rank)
}

func TestWithStack(t *testing.T) {
	t.Parallel()

	assert.NoError(t, WithStack(nil))

	err := New("foo")
	assert.Same(t, err, WithStack(err))

	wrapped := WithStack(customError{})
	assert.NotEmpty(t, Format(wrapped, FormatWithStack()))
	assert.Contains(t, Format(wrapped, FormatWithStack()), "custom")
}
