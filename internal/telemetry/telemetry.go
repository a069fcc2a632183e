package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const metricsInterval = 30 * time.Second

type Telemetry struct {
	TraceProvider *sdktrace.TracerProvider
	MeterProvider *sdkmetric.MeterProvider
	Tracer        trace.Tracer
	Meter         metric.Meter
	Metrics       *Metrics
	logger        *slog.Logger
}

// Disabled returns no-op providers with fully usable instruments
func Disabled(logger *slog.Logger) *Telemetry {
	meter := noop.NewMeterProvider().Meter("")
	// the noop meter never fails to create instruments
	metrics, _ := NewMetrics(meter)

	return &Telemetry{
		Tracer:  tracenoop.NewTracerProvider().Tracer(""),
		Meter:   meter,
		Metrics: metrics,
		logger:  logger,
	}
}

// Init sets up OpenTelemetry with both tracing and metrics pushed over OTLP/HTTP
func Init(ctx context.Context, serviceName, serviceVersion, env, otelEndpoint string, enabled bool, logger *slog.Logger) (*Telemetry, error) {
	if !enabled {
		logger.Info("telemetry disabled: using no-op providers")
		return Disabled(logger), nil
	}

	// create resource
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"", // merges from defaults
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
			attribute.String("environment", env),
		),
	)
	if err != nil {
		return nil, err
	}

	// setup tracing
	var traceProvider *sdktrace.TracerProvider
	traceExporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(otelEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("failed to create trace exporter, traces disabled", "err", err)
		traceProvider = sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
		)
	} else {
		traceProvider = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(traceExporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
		)
	}

	otel.SetTracerProvider(traceProvider)

	// setup metrics
	metricExporter, err := otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(otelEndpoint),
		otlpmetrichttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(metricsInterval))),
	)

	otel.SetMeterProvider(meterProvider)

	// setup ctx propagation
	otel.SetTextMapPropagator(propagation.TraceContext{})

	meter := meterProvider.Meter(serviceName)
	metrics, err := NewMetrics(meter)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		TraceProvider: traceProvider,
		MeterProvider: meterProvider,
		Tracer:        traceProvider.Tracer(serviceName),
		Meter:         meter,
		Metrics:       metrics,
		logger:        logger,
	}, nil
}

func (t *Telemetry) Shutdown(ctx context.Context) error {
	// if noop exit now
	if t.TraceProvider == nil && t.MeterProvider == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var errs []error
	if err := t.TraceProvider.Shutdown(ctx); err != nil {
		t.logger.Error("failed to shutdown tracer provider", "err", err)
		errs = append(errs, err)
	}

	if err := t.MeterProvider.Shutdown(ctx); err != nil {
		t.logger.Error("failed to shutdown meter provider", "err", err)
		errs = append(errs, err)
	}

	t.logger.Info("telemetry shutdown complete")
	return errors.Join(errs...)
}
