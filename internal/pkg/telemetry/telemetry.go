// Package telemetry wraps OpenTelemetry tracer and meter providers.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	metricNoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	traceNoop "go.opentelemetry.io/otel/trace/noop"
)

const appName = "github.com/keboola/lockstep-cluster"

type ctxKey string

type Telemetry interface {
	TracerProvider() trace.TracerProvider
	MeterProvider() metric.MeterProvider
	Tracer() Tracer
	Meter() Meter
}

type (
	TracerProviderFactory func() (trace.TracerProvider, error)
	MeterProviderFactory  func() (metric.MeterProvider, error)
)

type telemetry struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	tracer         Tracer
	meter          Meter
}

// New creates telemetry from the factories, a nil provider is replaced by a noop provider.
func New(tpFactory TracerProviderFactory, mpFactory MeterProviderFactory) (Telemetry, error) {
	var tp trace.TracerProvider
	var mp metric.MeterProvider
	var err error

	if tpFactory != nil {
		if tp, err = tpFactory(); err != nil {
			return nil, err
		}
	}
	if mpFactory != nil {
		if mp, err = mpFactory(); err != nil {
			return nil, err
		}
	}

	return newTelemetry(tp, mp), nil
}

func NewNop() Telemetry {
	return newTelemetry(nil, nil)
}

func newTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) *telemetry {
	if tp == nil {
		tp = traceNoop.NewTracerProvider()
	}
	if mp == nil {
		mp = metricNoop.NewMeterProvider()
	}
	return &telemetry{
		tracerProvider: tp,
		meterProvider:  mp,
		tracer:         &tracer{tracer: tp.Tracer(appName)},
		meter:          &meter{meter: mp.Meter(appName)},
	}
}

func (t *telemetry) TracerProvider() trace.TracerProvider {
	return t.tracerProvider
}

func (t *telemetry) MeterProvider() metric.MeterProvider {
	return t.meterProvider
}

func (t *telemetry) Tracer() Tracer {
	return t.tracer
}

func (t *telemetry) Meter() Meter {
	return t.meter
}

type Tracer interface {
	Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, Span)
}

type tracer struct {
	tracer trace.Tracer
}

func (t *tracer) Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, Span) {
	if IsTracingDisabled(ctx) {
		return ctx, &span{span: trace.SpanFromContext(context.Background())}
	}
	ctx, s := t.tracer.Start(ctx, spanName, opts...)
	return ctx, &span{span: s}
}

func ContextWithSpan(ctx context.Context, s Span) context.Context {
	if v, ok := s.(*span); ok {
		return trace.ContextWithSpan(ctx, v.span)
	}
	return ctx
}

func SpanFromContext(ctx context.Context) Span {
	return &span{span: trace.SpanFromContext(ctx)}
}
