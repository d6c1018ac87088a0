package telemetry

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// ForTest is an in-memory telemetry with deterministic trace and span IDs.
type ForTest interface {
	Telemetry
	TraceID(n int) trace.TraceID
	SpanID(n int) trace.SpanID
	Spans(t *testing.T) tracetest.SpanStubs
	Metrics(t *testing.T) []metricdata.Metrics
	CounterValue(t *testing.T, name string, attrs attribute.Set) int64
	HistogramCount(t *testing.T, name string, attrs attribute.Set) uint64
}

type forTest Telemetry

type testTelemetry struct {
	forTest
	spanExporter *tracetest.InMemoryExporter
	metricReader *sdkmetric.ManualReader
}

func NewForTest(tb testing.TB) ForTest {
	tb.Helper()

	spanExporter := tracetest.NewInMemoryExporter()
	tp := tracesdk.NewTracerProvider(
		tracesdk.WithSyncer(spanExporter),
		tracesdk.WithIDGenerator(&testIDGenerator{}),
	)
	metricReader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(metricReader))

	tb.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})

	return &testTelemetry{
		forTest:      newTelemetry(tp, mp),
		spanExporter: spanExporter,
		metricReader: metricReader,
	}
}

func (v *testTelemetry) TraceID(n int) trace.TraceID {
	return testTraceID(uint64(n))
}

func (v *testTelemetry) SpanID(n int) trace.SpanID {
	return testSpanID(uint64(n))
}

func (v *testTelemetry) Spans(t *testing.T) tracetest.SpanStubs {
	t.Helper()
	return v.spanExporter.GetSpans()
}

func (v *testTelemetry) Metrics(t *testing.T) []metricdata.Metrics {
	t.Helper()
	var data metricdata.ResourceMetrics
	require.NoError(t, v.metricReader.Collect(context.Background(), &data))

	var out []metricdata.Metrics
	for _, scope := range data.ScopeMetrics {
		out = append(out, scope.Metrics...)
	}
	return out
}

// CounterValue returns value of the Int64 counter with the attributes, or 0 if it has not been recorded.
func (v *testTelemetry) CounterValue(t *testing.T, name string, attrs attribute.Set) int64 {
	t.Helper()
	for _, m := range v.Metrics(t) {
		if m.Name != name {
			continue
		}
		sum, ok := m.Data.(metricdata.Sum[int64])
		require.True(t, ok, `metric "%s" is not an int64 sum`, name)
		for _, point := range sum.DataPoints {
			if point.Attributes.Equals(&attrs) {
				return point.Value
			}
		}
	}
	return 0
}

// HistogramCount returns number of values recorded by the histogram with the attributes.
func (v *testTelemetry) HistogramCount(t *testing.T, name string, attrs attribute.Set) uint64 {
	t.Helper()
	for _, m := range v.Metrics(t) {
		if m.Name != name {
			continue
		}
		histogram, ok := m.Data.(metricdata.Histogram[float64])
		require.True(t, ok, `metric "%s" is not a float64 histogram`, name)
		for _, point := range histogram.DataPoints {
			if point.Attributes.Equals(&attrs) {
				return point.Count
			}
		}
	}
	return 0
}

type testIDGenerator struct {
	lock        sync.Mutex
	traceIDBase uint64
	spanIDBase  uint64
}

func (g *testIDGenerator) NewIDs(_ context.Context) (trace.TraceID, trace.SpanID) {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.traceIDBase++
	g.spanIDBase++
	return testTraceID(g.traceIDBase), testSpanID(g.spanIDBase)
}

func (g *testIDGenerator) NewSpanID(_ context.Context, _ trace.TraceID) trace.SpanID {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.spanIDBase++
	return testSpanID(g.spanIDBase)
}

func testTraceID(n uint64) trace.TraceID {
	var id trace.TraceID
	binary.BigEndian.PutUint64(id[8:], n)
	return id
}

func testSpanID(n uint64) trace.SpanID {
	var id trace.SpanID
	binary.BigEndian.PutUint64(id[:], n)
	return id
}
