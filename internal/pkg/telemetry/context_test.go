package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/keboola/lockstep-cluster/internal/pkg/telemetry"
	"github.com/keboola/lockstep-cluster/internal/pkg/utils/errors"
)

func TestContextWithSpan(t *testing.T) {
	t.Parallel()
	tel := telemetry.NewForTest(t)

	// Start span
	_, span1 := tel.Tracer().Start(context.Background(), "my.span")

	// Test ContextWithSpan
	ctx2 := telemetry.ContextWithSpan(context.Background(), span1)
	ctx2, span2 := tel.Tracer().Start(ctx2, "my.sub.span")

	// Test SpanFromContext
	ctx3 := telemetry.ContextWithSpan(context.Background(), telemetry.SpanFromContext(ctx2))
	_, span3 := tel.Tracer().Start(ctx3, "my.sub.sub.span")

	// Close spans
	err := errors.New("some error")
	span3.End(&err)
	span2.AddEvent("delivered", attribute.Int("workers", 2))
	span2.End(nil)
	span1.End(nil)

	spans := tel.Spans(t)
	require.Len(t, spans, 3)

	// Spans are exported in the order they ended
	assert.Equal(t, "my.sub.sub.span", spans[0].Name)
	assert.Equal(t, tel.SpanID(3), spans[0].SpanContext.SpanID())
	assert.Equal(t, tel.SpanID(2), spans[0].Parent.SpanID())
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "some error", spans[0].Status.Description)

	assert.Equal(t, "my.sub.span", spans[1].Name)
	assert.Equal(t, tel.TraceID(1), spans[1].SpanContext.TraceID())
	assert.Equal(t, tel.SpanID(1), spans[1].Parent.SpanID())
	require.Len(t, spans[1].Events, 1)
	assert.Equal(t, "delivered", spans[1].Events[0].Name)

	assert.Equal(t, "my.span", spans[2].Name)
	assert.False(t, spans[2].Parent.IsValid())
	assert.Equal(t, codes.Unset, spans[2].Status.Code)
}

func TestDisabledTracing(t *testing.T) {
	t.Parallel()
	tel := telemetry.NewForTest(t)

	ctx := telemetry.ContextWithDisabledTracing(context.Background())
	assert.True(t, telemetry.IsTracingDisabled(ctx))

	_, span := tel.Tracer().Start(ctx, "my.span")
	span.End(nil)
	assert.Empty(t, tel.Spans(t))
}

func TestMeter(t *testing.T) {
	t.Parallel()
	tel := telemetry.NewForTest(t)
	ctx := context.Background()

	attrs := attribute.NewSet(attribute.String("kind", "foo"))
	counter := tel.Meter().Counter("my.counter", "Some counter.", "")
	counter.Add(ctx, 2, metricAttrs(attrs))
	counter.Add(ctx, 3, metricAttrs(attrs))

	histogram := tel.Meter().Histogram("my.histogram", "Some histogram.", "ms")
	histogram.Record(ctx, 12.5, metricAttrs(attrs))

	assert.Equal(t, int64(5), tel.CounterValue(t, "my.counter", attrs))
	assert.Equal(t, int64(0), tel.CounterValue(t, "my.counter", *attribute.EmptySet()))
	assert.Equal(t, uint64(1), tel.HistogramCount(t, "my.histogram", attrs))
}

func TestNop(t *testing.T) {
	t.Parallel()
	tel := telemetry.NewNop()
	_, span := tel.Tracer().Start(context.Background(), "my.span")
	span.SetAttributes(attribute.String("foo", "bar"))
	span.End(nil)
	tel.Meter().Counter("my.counter", "", "").Add(context.Background(), 1)
}

func metricAttrs(set attribute.Set) metric.MeasurementOption {
	return metric.WithAttributeSet(set)
}
