package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const disabledTracingCtxKey = ctxKey("disabled-tracing")

// Span wraps the otel span, End records the error from the named return value of the traced function.
type Span interface {
	SetAttributes(kv ...attribute.KeyValue)
	// AddEvent marks a phase of a long operation, for example the release of a barrier.
	AddEvent(name string, kv ...attribute.KeyValue)
	End(errPtr *error, opts ...trace.SpanEndOption)
}

type span struct {
	span trace.Span
}

// ContextWithDisabledTracing suppresses spans started with the context,
// it is used for unbounded waits, for example a worker waiting for the next command.
func ContextWithDisabledTracing(ctx context.Context) context.Context {
	return context.WithValue(ctx, disabledTracingCtxKey, true)
}

func IsTracingDisabled(ctx context.Context) bool {
	disabled, _ := ctx.Value(disabledTracingCtxKey).(bool)
	return disabled
}

func (s *span) SetAttributes(kv ...attribute.KeyValue) {
	s.span.SetAttributes(kv...)
}

func (s *span) AddEvent(name string, kv ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(kv...))
}

func (s *span) End(errPtr *error, opts ...trace.SpanEndOption) {
	switch {
	case errPtr == nil:
	case *errPtr != nil:
		s.span.RecordError(*errPtr)
		s.span.SetStatus(codes.Error, (*errPtr).Error())
	default:
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End(opts...)
}
