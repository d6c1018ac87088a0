// nolint:forbidigo // allow usage of the "zap" package
package log

import (
	"io"

	"go.uber.org/zap/zapcore"
)

// LogFormat of the rank output, "console" for people, "json" for log collectors and tests.
type LogFormat string

const (
	LogFormatConsole LogFormat = "console"
	LogFormatJSON    LogFormat = "json"
)

// NewServiceLogger creates a logger for a long-running process, the output is human-readable.
func NewServiceLogger(w io.Writer, debug bool) Logger {
	encoder := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		MessageKey:       "message",
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeTime:       zapcore.ISO8601TimeEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	})
	return loggerFromZapCore(zapcore.NewCore(encoder, zapcore.AddSync(w), levelFor(debug)))
}

// NewJSONLogger creates a logger with JSON output, one record per line.
func NewJSONLogger(w io.Writer, debug bool) Logger {
	return loggerFromZapCore(zapcore.NewCore(jsonEncoder(), zapcore.AddSync(w), levelFor(debug)))
}

// New creates a logger according to the format.
func New(w io.Writer, format LogFormat, debug bool) Logger {
	if format == LogFormatJSON {
		return NewJSONLogger(w, debug)
	}
	return NewServiceLogger(w, debug)
}

func NewNopLogger() Logger {
	return loggerFromZapCore(zapcore.NewNopCore())
}

func jsonEncoder() zapcore.Encoder {
	return zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		MessageKey:     "message",
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	})
}

func levelFor(debug bool) zapcore.Level {
	if debug {
		return DebugLevel
	}
	return InfoLevel
}
