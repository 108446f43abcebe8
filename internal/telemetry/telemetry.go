// Package telemetry installs the OpenTelemetry tracer provider. When
// tracing is disabled the global no-op provider stays in place, so spans
// started elsewhere cost nothing.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/zxlitianshu/Kekari-agent/pkg/lifecycle"
)

// Instrumentation is the tracer name used by this module.
const Instrumentation = "github.com/zxlitianshu/Kekari-agent"

// Tracer returns the module tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(Instrumentation)
}

// System owns the tracer provider lifecycle.
type System interface {
	Start(lc *lifecycle.Coordinator) error
	Shutdown(ctx context.Context) error
}

type provider struct {
	tp     *sdktrace.TracerProvider
	logger *slog.Logger
}

// New builds the OTLP HTTP exporter and registers the provider globally.
// A disabled config returns a System whose methods are no-ops.
func New(ctx context.Context, cfg *Config, version string, logger *slog.Logger) (System, error) {
	logger = logger.With("system", "telemetry")
	if !cfg.Enabled {
		logger.Info("tracing disabled")
		return &provider{logger: logger}, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(version),
		)),
	)
	otel.SetTracerProvider(tp)

	logger.Info("tracing enabled", "endpoint", cfg.Endpoint, "sample_ratio", cfg.SampleRatio)
	return &provider{tp: tp, logger: logger}, nil
}

func (p *provider) Start(lc *lifecycle.Coordinator) error {
	lc.OnShutdown(func() {
		<-lc.Context().Done()
		if err := p.Shutdown(context.Background()); err != nil {
			p.logger.Error("tracer shutdown failed", "error", err)
		}
	})
	return nil
}

func (p *provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}
