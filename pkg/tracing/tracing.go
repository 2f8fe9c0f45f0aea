// Package tracing installs the process-wide OpenTelemetry tracer provider.
package tracing

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Config is loaded from the OTEL_ section. Spans go to Endpoint over OTLP/gRPC
// when it is set, otherwise to stdout.
type Config struct {
	Enabled     bool    `split_words:"true"`
	Endpoint    string  `split_words:"true"`
	Insecure    bool    `split_words:"true" default:"true"`
	ServiceName string  `split_words:"true" default:"chative-sales"`
	SampleRatio float64 `split_words:"true" default:"1"`
}

// Runtime holds the tracer handed to the interceptor and the hook that
// flushes pending spans.
type Runtime struct {
	Tracer   trace.Tracer
	Shutdown func(context.Context) error
}

type Option func(*options)

type options struct {
	writer io.Writer
}

// WithWriter sends stdout spans to w instead of os.Stdout.
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		o.writer = w
	}
}

func Setup(ctx context.Context, cfg Config, opts ...Option) (Runtime, error) {
	o := options{writer: os.Stdout}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "chative-sales"
	}
	if !cfg.Enabled {
		return Runtime{
			Tracer:   otel.Tracer(name),
			Shutdown: func(context.Context) error { return nil },
		}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(attribute.String("service.name", name)),
	)
	if err != nil {
		return Runtime{}, fmt.Errorf("otel resource: %w", err)
	}

	exp, err := newExporter(ctx, cfg, o)
	if err != nil {
		return Runtime{}, err
	}

	ratio := cfg.SampleRatio
	if ratio <= 0 {
		ratio = 1
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)
	otel.SetTracerProvider(tp)

	return Runtime{
		Tracer:   tp.Tracer(name),
		Shutdown: tp.Shutdown,
	}, nil
}

func newExporter(ctx context.Context, cfg Config, o options) (sdktrace.SpanExporter, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(o.writer))
		if err != nil {
			return nil, fmt.Errorf("otel stdout exporter: %w", err)
		}
		return exp, nil
	}

	grpcOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
	if cfg.Insecure {
		grpcOpts = append(grpcOpts, otlptracegrpc.WithInsecure())
	}
	exp, err := otlptracegrpc.New(ctx, grpcOpts...)
	if err != nil {
		return nil, fmt.Errorf("otel otlp exporter: %w", err)
	}
	return exp, nil
}
