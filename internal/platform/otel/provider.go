// Package otel configures OpenTelemetry tracing for cardmesh processes and hands the
// session code its tracer.
package otel

import (
	"context"
	"fmt"

	"github.com/caarlos0/env/v11"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// SessionScope is the instrumentation scope of spans recorded by a session host.
const SessionScope = "cardmesh/session"

// Config selects where spans go. Tracing stays off until Endpoint is set.
type Config struct {
	Endpoint    string  `env:"CARDMESH_OTEL_ENDPOINT"`
	Enabled     bool    `env:"CARDMESH_OTEL_ENABLED" envDefault:"true"`
	SampleRatio float64 `env:"CARDMESH_OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// LoadConfig reads Config from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse otel env: %w", err)
	}
	if cfg.SampleRatio < 0 || cfg.SampleRatio > 1 {
		return Config{}, fmt.Errorf("CARDMESH_OTEL_SAMPLE_RATIO %v outside [0, 1]", cfg.SampleRatio)
	}
	return cfg, nil
}

// Setup installs a global tracer provider for serviceName, tagging every span with
// attrs (a host or joiner role, say). When tracing is off it registers nothing and
// returns a shutdown that does nothing. Call shutdown before exit to flush spans.
func Setup(ctx context.Context, serviceName string, attrs ...attribute.KeyValue) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	cfg, err := LoadConfig()
	if err != nil {
		return noop, err
	}
	if !cfg.Enabled || cfg.Endpoint == "" {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	if err != nil {
		return noop, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(append([]attribute.KeyValue{semconv.ServiceName(serviceName)}, attrs...)...),
	)
	if err != nil {
		return noop, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp.Shutdown, nil
}

// SessionTracer returns the tracer for host mutations. It is a no-op until Setup
// installs a provider.
func SessionTracer() trace.Tracer {
	return otel.Tracer(SessionScope)
}

// Fail records err on span and marks it failed.
func Fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
