// Package log is the structured logger of all ranks.
//
// Every method takes a context, attributes stored by the ctxattr package are added to the record.
// Attributes are otel attribute.KeyValue values, so logs and spans share the same keys.
// Placeholders <key> in a message are replaced by the attribute value.
package log

import (
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap/zapcore"
)

const (
	DebugLevel = zapcore.DebugLevel
	InfoLevel  = zapcore.InfoLevel
	WarnLevel  = zapcore.WarnLevel
	ErrorLevel = zapcore.ErrorLevel
)

type Logger interface {
	Debug(ctx context.Context, message string)
	Info(ctx context.Context, message string)
	Warn(ctx context.Context, message string)
	Error(ctx context.Context, message string)
	Debugf(ctx context.Context, template string, args ...any)
	Infof(ctx context.Context, template string, args ...any)
	Warnf(ctx context.Context, template string, args ...any)
	Errorf(ctx context.Context, template string, args ...any)

	// With returns a child logger, its attributes take precedence over the context attributes.
	With(attrs ...attribute.KeyValue) Logger
	// WithComponent appends the component to the dot separated component path, for example "rank1.cluster.channel".
	WithComponent(component string) Logger
	WithDuration(v time.Duration) Logger

	Sync() error
}

// DebugLogger records all messages as JSON lines, it is used by tests to assert logs of a rank.
type DebugLogger interface {
	Logger
	// ConnectTo streams records also to the writer, see TEST_VERBOSE.
	ConnectTo(writer io.Writer)
	Truncate()
	AllMessages() string
	AllMessagesTxt() string
	ErrorMessages() string
	CompareJSONMessages(expected string) error
	AssertJSONMessages(t assert.TestingT, expected string, msgAndArgs ...any) bool
}
