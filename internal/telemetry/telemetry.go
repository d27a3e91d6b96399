// Package telemetry configures OpenTelemetry tracing for the server.
package telemetry

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	EndpointEnv = "DICEPOKER_OTEL_ENDPOINT"
	EnabledEnv  = "DICEPOKER_OTEL_ENABLED"
)

// Shutdown flushes pending spans.
type Shutdown func(context.Context) error

// Enabled reports whether Setup would install a provider.
func Enabled() bool {
	if strings.EqualFold(os.Getenv(EnabledEnv), "false") {
		return false
	}
	return os.Getenv(EndpointEnv) != ""
}

// Setup installs a global tracer provider exporting to DICEPOKER_OTEL_ENDPOINT.
// Without an endpoint it does nothing and table spans go to the no-op tracer.
func Setup(ctx context.Context, serviceName, version string) (Shutdown, error) {
	noop := func(context.Context) error { return nil }
	if !Enabled() {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(os.Getenv(EndpointEnv)),
	)
	if err != nil {
		return noop, fmt.Errorf("telemetry: exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return noop, fmt.Errorf("telemetry: resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}
