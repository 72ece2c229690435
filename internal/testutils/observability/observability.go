package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	tnop "go.opentelemetry.io/otel/trace/noop"

	testlogr "github.com/alphabill-org/ptsim/internal/testutils/logger"
)

/*
NOPObservability creates observability implementation where everything is no-op.
Use it for tests for which it absolutely doesn't make sense to create any logs or metrics.
*/
func NOPObservability() *Observability {
	return &Observability{
		log: testlogr.NOP(),
		mp:  noop.NewMeterProvider(),
		tp:  tnop.NewTracerProvider(),
	}
}

/*
Default creates observability with test logger and no-op metrics. Traces are
exported when environment variable PTSIM_TEST_TRACER is set (to "stdout").
*/
func Default(t *testing.T) *Observability {
	return &Observability{
		log: testlogr.New(t),
		mp:  noop.NewMeterProvider(),
		tp:  tracerProvider(t),
	}
}

/*
WithMetrics creates observability which collects metrics into manual reader,
use Observability.Int64Sum to read the collected values.
*/
func WithMetrics(t *testing.T) *Observability {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		if err := mp.Shutdown(context.Background()); err != nil {
			t.Logf("shutting down meter provider: %v", err)
		}
	})

	return &Observability{
		log:    testlogr.New(t),
		mp:     mp,
		tp:     tracerProvider(t),
		reader: reader,
	}
}

type Observability struct {
	log    *slog.Logger
	mp     metric.MeterProvider
	tp     trace.TracerProvider
	reader *sdkmetric.ManualReader
}

func (o *Observability) Logger() *slog.Logger { return o.log }

func (o *Observability) Meter(name string, options ...metric.MeterOption) metric.Meter {
	return o.mp.Meter(name, options...)
}

func (o *Observability) Tracer(name string, options ...trace.TracerOption) trace.Tracer {
	return o.tp.Tracer(name, options...)
}

func (o *Observability) Shutdown() error { return nil }

/*
Int64Sum returns sum of all data points of the int64 counter or gauge "name"
in the meter "scope". Observability must have been created by WithMetrics.
*/
func (o *Observability) Int64Sum(t *testing.T, scope, name string) int64 {
	t.Helper()
	require.NotNil(t, o.reader, "observability was not created with metrics reader")

	var rm metricdata.ResourceMetrics
	require.NoError(t, o.reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		if sm.Scope.Name != scope {
			continue
		}
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			var total int64
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					total += dp.Value
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					total += dp.Value
				}
			default:
				t.Fatalf("unsupported data type %T of metric %s/%s", m.Data, scope, name)
			}
			return total
		}
	}
	return 0
}

func tracerProvider(t *testing.T) trace.TracerProvider {
	exporter := os.Getenv("PTSIM_TEST_TRACER")
	if exporter == "" {
		return tnop.NewTracerProvider()
	}

	tp, err := newTraceProvider(exporter, resource.NewWithAttributes(semconv.SchemaURL,
		semconv.ServiceName("ptsim"),
		attribute.String("test.name", t.Name()),
	))
	if err != nil {
		t.Fatal("failed to init trace exporter", err)
	}
	t.Cleanup(func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("shutting down trace exporter: %v", err)
		}
	})
	return tp
}

func newTraceProvider(exporter string, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	var err error
	var exp sdktrace.SpanExporter

	switch exporter {
	case "stdout":
		exp, err = stdouttrace.New()
	default:
		return nil, fmt.Errorf("unsupported trace exporter %q", exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %q exporter: %w", exporter, err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSyncer(exp),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	), nil
}
