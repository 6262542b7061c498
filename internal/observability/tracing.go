package observability

import (
	"context"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// tracerName identifies spans emitted by this core in any downstream
// trace backend.
const tracerName = "github.com/graphguard/policycore"

// Providers bundles the tracer and meter providers for a session. Call
// Shutdown when the session ends to flush the stdout exporters.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
}

// NewStdoutProviders builds tracer/meter providers that write spans and
// metrics as JSON to w — the teacher's go.mod lists the stdout exporters
// without ever constructing a provider from them; this is their first
// concrete use, for session-local diagnostics during compile and
// enforcement of the suspension points named in §5.
func NewStdoutProviders(w io.Writer) (*Providers, error) {
	spanExporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithoutTimestamps())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(spanExporter))

	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)))

	return &Providers{TracerProvider: tp, MeterProvider: mp}, nil
}

// Shutdown flushes and releases both providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	if err := p.TracerProvider.Shutdown(ctx); err != nil {
		return err
	}
	return p.MeterProvider.Shutdown(ctx)
}

// Tracer returns the tracer this core's services use for spans: one per
// Compiler.Wrap call and one per policy-query execution. class_ids,
// target-resolver subqueries and index_range lookups are not spanned.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// Meter returns the meter backing OTel-native instruments, for callers
// that prefer an OTel metrics pipeline over the Prometheus registry.
func Meter() metric.Meter {
	return otel.Meter(tracerName)
}
