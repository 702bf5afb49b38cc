// Package observability initializes the process-wide OpenTelemetry tracer
// provider that internal/exec's span instrumentation writes into. A
// single-process WebSocket daemon has no inbound cross-service trace
// headers, so there is no propagation middleware here — just the
// init/shutdown lifecycle.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Config mirrors internal/config's TracingConfig.
type Config struct {
	Enabled     bool
	Exporter    string
	Endpoint    string
	ServiceName string
	SampleRate  float64
}

var activeProvider *sdktrace.TracerProvider

// Init installs a global TracerProvider when cfg.Enabled, exporting spans
// via OTLP/HTTP (or a no-op exporter for "stdout", kept for local runs
// without a collector). When disabled, otel's default no-op provider is
// left in place, so every exec.tracer.Start call is a cheap no-op.
func Init(ctx context.Context, cfg Config) error {
	if !cfg.Enabled {
		return nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion("1.0.0"),
		),
	)
	if err != nil {
		return fmt.Errorf("observability: build resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch cfg.Exporter {
	case "otlp-http", "otlp", "":
		exp, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(cfg.Endpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("observability: create OTLP exporter: %w", err)
		}
		exporter = exp
	case "stdout":
		exporter = &noopExporter{}
	default:
		return fmt.Errorf("observability: unknown exporter %q", cfg.Exporter)
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRate < 1.0 && cfg.SampleRate >= 0 {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	activeProvider = tp
	return nil
}

// Shutdown flushes and stops the active TracerProvider, if one was
// installed by Init.
func Shutdown(ctx context.Context) error {
	if activeProvider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return activeProvider.Shutdown(ctx)
}

type noopExporter struct{}

func (e *noopExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	return nil
}

func (e *noopExporter) Shutdown(ctx context.Context) error {
	return nil
}
