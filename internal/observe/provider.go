package observe

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
)

// ProviderConfig configures the global telemetry pipeline.
type ProviderConfig struct {
	// ServiceName defaults to "lexivox".
	ServiceName string

	ServiceVersion string

	// Registerer receives the Prometheus collector. Nil means
	// prometheus.DefaultRegisterer, which is what promhttp.Handler serves.
	Registerer prometheus.Registerer

	// TraceExporter receives finished spans. Nil keeps spans in process only,
	// which is enough for trace IDs in logs and correlation headers.
	TraceExporter sdktrace.SpanExporter

	// SampleRatio is the fraction of root spans sampled, in (0, 1].
	// Zero samples everything.
	SampleRatio float64
}

// InitProvider installs the global MeterProvider, TracerProvider and W3C
// propagator. Meters are read by a Prometheus collector registered on
// cfg.Registerer.
//
// The returned function shuts the providers down in reverse order of
// installation. Call it once, after the last span has ended.
func InitProvider(ctx context.Context, cfg ProviderConfig) (func(context.Context) error, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "lexivox"
	}
	if cfg.SampleRatio < 0 || cfg.SampleRatio > 1 {
		return nil, fmt.Errorf("observe: sample ratio %v outside [0, 1]", cfg.SampleRatio)
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
		resource.WithSchemaURL(semconv.SchemaURL),
	)
	if err != nil {
		return nil, fmt.Errorf("observe: build resource: %w", err)
	}

	var expOpts []promexporter.Option
	if cfg.Registerer != nil {
		expOpts = append(expOpts, promexporter.WithRegisterer(cfg.Registerer))
	}
	reader, err := promexporter.New(expOpts...)
	if err != nil {
		return nil, fmt.Errorf("observe: prometheus exporter: %w", err)
	}

	var closers []func(context.Context) error

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp)
	closers = append(closers, mp.Shutdown)

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRatio > 0 && cfg.SampleRatio < 1 {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRatio)
	}
	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	}
	if cfg.TraceExporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(cfg.TraceExporter))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)
	closers = append(closers, tp.Shutdown)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func(ctx context.Context) error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}, nil
}
