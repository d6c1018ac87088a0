package errors

import (
	"fmt"
	"runtime"
	"strings"
)

const (
	Indent = "  "
	Bullet = "- "
)

type FormatOption func(c *formatConfig)

type formatConfig struct {
	withStack  bool
	withUnwrap bool
}

// FormatWithStack adds the source location of each error to the output.
func FormatWithStack() FormatOption {
	return func(c *formatConfig) {
		c.withStack = true
	}
}

// FormatWithUnwrap writes also errors wrapped by the Wrap function.
func FormatWithUnwrap() FormatOption {
	return func(c *formatConfig) {
		c.withUnwrap = true
	}
}

// Format converts the error to a string, nested and multi errors are formatted as a bullet list.
func Format(err error, opts ...FormatOption) string {
	cfg := formatConfig{}
	for _, o := range opts {
		o(&cfg)
	}
	var out strings.Builder
	writeError(&out, cfg, 0, err)
	return out.String()
}

func writeError(out *strings.Builder, cfg formatConfig, level int, err error) {
	// nolint: errorlint
	switch v := err.(type) {
	case nestedErrorGetter:
		writeNested(out, cfg, level, v.MainError(), v.WrappedErrors())
	case multiErrorGetter:
		writeList(out, cfg, level, v.WrappedErrors())
	case *wrappedError:
		out.WriteString(formatMessage(cfg, v.msg, v.trace))
		if cfg.withUnwrap && v.cause != nil {
			out.WriteString(fmt.Sprintf(" (%T):\n", v))
			out.WriteString(strings.Repeat(Indent, level))
			out.WriteString(Bullet)
			writeError(out, cfg, level+1, v.cause)
		}
	case *withStack:
		out.WriteString(formatMessage(cfg, v.error.Error(), v.trace))
	default:
		out.WriteString(v.Error())
	}
}

func writeNested(out *strings.Builder, cfg formatConfig, level int, main error, errs []error) {
	var mainOut strings.Builder
	writeError(&mainOut, cfg, level, main)
	mainStr := mainOut.String()
	if len(errs) == 0 {
		out.WriteString(mainStr)
		return
	}

	var subOut strings.Builder
	writeList(&subOut, cfg, level, errs)
	subStr := subOut.String()

	out.WriteString(strings.TrimRight(mainStr, ".,:") + ":")
	if len(errs) > 1 || len(mainStr)+len(subStr) > 60 || strings.Contains(subStr, "\n") {
		out.WriteString("\n")
		if len(errs) == 1 {
			out.WriteString(strings.Repeat(Indent, level))
			out.WriteString(Bullet)
			writeError(out, cfg, level+1, errs[0])
		} else {
			writeList(out, cfg, level, errs)
		}
	} else {
		out.WriteString(" ")
		out.WriteString(subStr)
	}
}

func writeList(out *strings.Builder, cfg formatConfig, level int, errs []error) {
	indent := len(errs) > 1
	last := len(errs) - 1
	for i, err := range errs {
		if indent {
			out.WriteString(strings.Repeat(Indent, level))
			out.WriteString(Bullet)
		}
		writeError(out, cfg, level+1, err)
		if i != last {
			out.WriteString("\n")
		}
	}
}

func formatMessage(cfg formatConfig, msg string, trace StackTrace) string {
	if cfg.withStack && len(trace) > 0 {
		frame := trace[0]
		if fn := runtime.FuncForPC(frame); fn != nil {
			file, line := fn.FileLine(frame)
			msg = fmt.Sprintf("%s [%s:%d]", msg, file, line)
		}
	}
	return msg
}
