// nolint:forbidigo // allow usage of the "zap" package
package log

import (
	"context"
	"fmt"
	"time"

	"github.com/umisama/go-regexpcache"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/keboola/lockstep-cluster/internal/pkg/ctxattr"
)

const (
	componentKey = "component"
	durationKey  = "duration"
)

// zapLogger is default implementation of the Logger interface.
type zapLogger struct {
	logger    *zap.Logger
	component string
	attrs     *attribute.Set
}

func loggerFromZapCore(core zapcore.Core) *zapLogger {
	return &zapLogger{logger: zap.New(core), attrs: attribute.EmptySet()}
}

func (l *zapLogger) With(attrs ...attribute.KeyValue) Logger {
	clone := *l
	merged := attribute.NewSet(append(l.attrs.ToSlice(), attrs...)...)
	clone.attrs = &merged
	return &clone
}

func (l *zapLogger) WithComponent(component string) Logger {
	clone := *l
	if clone.component == "" {
		clone.component = component
	} else {
		clone.component += "." + component
	}
	return &clone
}

func (l *zapLogger) WithDuration(v time.Duration) Logger {
	return l.With(attribute.String(durationKey, v.String()))
}

func (l *zapLogger) Debug(ctx context.Context, message string) {
	l.log(ctx, DebugLevel, message)
}

func (l *zapLogger) Info(ctx context.Context, message string) {
	l.log(ctx, InfoLevel, message)
}

func (l *zapLogger) Warn(ctx context.Context, message string) {
	l.log(ctx, WarnLevel, message)
}

func (l *zapLogger) Error(ctx context.Context, message string) {
	l.log(ctx, ErrorLevel, message)
}

func (l *zapLogger) Debugf(ctx context.Context, template string, args ...any) {
	l.log(ctx, DebugLevel, fmt.Sprintf(template, args...))
}

func (l *zapLogger) Infof(ctx context.Context, template string, args ...any) {
	l.log(ctx, InfoLevel, fmt.Sprintf(template, args...))
}

func (l *zapLogger) Warnf(ctx context.Context, template string, args ...any) {
	l.log(ctx, WarnLevel, fmt.Sprintf(template, args...))
}

func (l *zapLogger) Errorf(ctx context.Context, template string, args ...any) {
	l.log(ctx, ErrorLevel, fmt.Sprintf(template, args...))
}

func (l *zapLogger) Sync() error {
	return l.logger.Sync()
}

func (l *zapLogger) log(ctx context.Context, level zapcore.Level, message string) {
	if !l.logger.Core().Enabled(level) {
		return
	}

	// Logger attributes override context attributes
	attrs := attribute.NewSet(append(ctxattr.Attributes(ctx).ToSlice(), l.attrs.ToSlice()...)...)

	if ce := l.logger.Check(level, replacePlaceholders(message, &attrs)); ce != nil {
		ce.Write(l.fields(&attrs)...)
	}
}

func (l *zapLogger) fields(attrs *attribute.Set) []zap.Field {
	fields := make([]zap.Field, 0, attrs.Len()+1)
	if l.component != "" {
		fields = append(fields, zap.String(componentKey, l.component))
	}
	iter := attrs.Iter()
	for iter.Next() {
		fields = append(fields, attributeToField(iter.Attribute()))
	}
	return fields
}

func attributeToField(kv attribute.KeyValue) zap.Field {
	key := string(kv.Key)
	switch kv.Value.Type() {
	case attribute.BOOL:
		return zap.Bool(key, kv.Value.AsBool())
	case attribute.INT64:
		return zap.Int64(key, kv.Value.AsInt64())
	case attribute.FLOAT64:
		return zap.Float64(key, kv.Value.AsFloat64())
	case attribute.STRING:
		return zap.String(key, kv.Value.AsString())
	default:
		return zap.Any(key, kv.Value.AsInterface())
	}
}

// replacePlaceholders replaces <key> placeholders with attribute values.
func replacePlaceholders(message string, attrs *attribute.Set) string {
	if attrs.Len() == 0 {
		return message
	}
	return regexpcache.MustCompile(`<[a-zA-Z0-9_.]+>`).ReplaceAllStringFunc(message, func(placeholder string) string {
		key := attribute.Key(placeholder[1 : len(placeholder)-1])
		if v, ok := attrs.Value(key); ok {
			return v.Emit()
		}
		return placeholder
	})
}
