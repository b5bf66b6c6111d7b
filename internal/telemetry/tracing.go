package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/seenimoa/secpack"

// Tracer returns the tracer used for EDGAR and pack spans. Until InitTracing
// installs a provider it is the global no-op tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// InitTracing installs a tracer provider for the given exporter ("none" or
// "stdout"). The returned shutdown func flushes pending spans and must be
// called on exit.
func InitTracing(exporter, version string) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	switch exporter {
	case "", "none":
		return noop, nil
	case "stdout":
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", exporter)
	}

	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("create stdout exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", "secpack"),
		attribute.String("service.version", version),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
