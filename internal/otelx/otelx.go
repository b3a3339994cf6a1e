// Package otelx installs the process-wide tracer provider and propagator.
package otelx

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc/credentials"
)

// dialTimeout bounds exporter construction; the grpc dial otherwise blocks
// until the collector answers.
const dialTimeout = 3 * time.Second

type Options struct {
	Enabled  bool
	Endpoint string
	Insecure bool
	// Sample is the parent-based trace ratio, clamped to [0,1].
	Sample    float64
	Service   string
	Component string
	Version   string

	// Exporter replaces the OTLP exporter. Tests use an in-memory one.
	Exporter sdktrace.SpanExporter
}

// ShutdownFunc flushes pending spans.
type ShutdownFunc func(context.Context) error

func serviceName(o Options) string {
	switch {
	case o.Service == "":
		return o.Component
	case o.Component == "":
		return o.Service
	default:
		return o.Service + "." + o.Component
	}
}

func clampRatio(r float64) float64 {
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}

func setPropagator() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
}

// Init configures tracing. When disabled it still installs an SDK provider
// with no exporter so span contexts propagate through the process.
func Init(ctx context.Context, o Options) (ShutdownFunc, error) {
	setPropagator()
	if !o.Enabled {
		tp := sdktrace.NewTracerProvider()
		otel.SetTracerProvider(tp)
		return tp.Shutdown, nil
	}

	exp := o.Exporter
	if exp == nil {
		if o.Endpoint == "" {
			return nil, fmt.Errorf("otelx: tracing enabled without an endpoint")
		}
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(o.Endpoint)}
		if o.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		} else {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
		}
		dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
		defer cancel()
		var err error
		if exp, err = otlptracegrpc.New(dialCtx, opts...); err != nil {
			return nil, fmt.Errorf("otelx: otlp exporter: %w", err)
		}
	}

	// resource.New returns a partial resource alongside detector errors;
	// a missing host attribute is not worth failing startup over.
	res, _ := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithOS(),
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName(o)),
			semconv.ServiceVersionKey.String(o.Version),
		),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(
			sdktrace.TraceIDRatioBased(clampRatio(o.Sample)),
		)),
		sdktrace.WithBatcher(exp,
			sdktrace.WithMaxQueueSize(2048),
			sdktrace.WithBatchTimeout(5*time.Second),
		),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
