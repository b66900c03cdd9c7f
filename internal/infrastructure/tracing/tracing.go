// Package tracing собирает OpenTelemetry TracerProvider по конфигурации сервера.
package tracing

import (
	"context"
	"fmt"
	"io"

	"healthsync/internal/app/server/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	TracerName  = "healthsync"
	ServiceName = "healthsync-server"

	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// Provider трассировщик и функция его остановки
type Provider struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
}

// New создает провайдер. Экспортер none дает noop-трассировщик.
// out используется только экспортером stdout, nil означает os.Stdout.
func New(ctx context.Context, cfg *config.Config, out io.Writer) (*Provider, error) {
	if cfg.Tracing.Exporter == "" || cfg.Tracing.Exporter == ExporterNone {
		return &Provider{tracer: noop.NewTracerProvider().Tracer(TracerName)}, nil
	}

	exporter, err := newExporter(ctx, cfg.Tracing.Exporter, cfg.Tracing.Endpoint, out)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", ServiceName),
			attribute.String("deployment.environment", cfg.Env),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.Tracing.SampleRate)),
	)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	otel.SetTracerProvider(provider)

	return &Provider{
		tracer:   provider.Tracer(TracerName),
		provider: provider,
	}, nil
}

func newExporter(ctx context.Context, kind, endpoint string, out io.Writer) (sdktrace.SpanExporter, error) {
	switch kind {
	case ExporterStdout:
		opts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
		if out != nil {
			opts = append(opts, stdouttrace.WithWriter(out))
		}
		return stdouttrace.New(opts...)
	case ExporterOTLP:
		opts := []otlptracehttp.Option{otlptracehttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(endpoint))
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported tracing exporter %q", kind)
	}
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Shutdown сбрасывает буфер экспортера
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.provider == nil {
		return nil
	}
	return p.provider.Shutdown(ctx)
}
