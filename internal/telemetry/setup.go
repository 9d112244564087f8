package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/acme/crm-telephony-sync/internal/config"
)

// Metrics bundles the three ambient instruments. No package in this
// repository constructs it or records to it.
type Metrics struct {
	QueueDepthAtFanout     metric.Int64Counter
	PagesProcessed         metric.Int64Counter
	WebhookReconcileMillis metric.Float64Histogram
}

// NewMetrics creates the three ambient instruments off the named meter on
// the globally installed MeterProvider (a no-op provider until Setup
// installs a real one, so callers can construct Metrics unconditionally).
func NewMetrics(meterName string) (*Metrics, error) {
	m := Meter(meterName)

	queueDepth, err := m.Int64Counter("queue_depth_at_fanout",
		metric.WithDescription("number of pages fanned out at pagination start"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: queue_depth_at_fanout counter: %w", err)
	}

	pagesProcessed, err := m.Int64Counter("pages_processed",
		metric.WithDescription("pages completed by the pagination engine"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: pages_processed counter: %w", err)
	}

	reconcileMillis, err := m.Float64Histogram("webhook_reconcile_duration_ms",
		metric.WithDescription("time spent reconciling webhook subscriptions"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: webhook_reconcile_duration_ms histogram: %w", err)
	}

	return &Metrics{
		QueueDepthAtFanout:     queueDepth,
		PagesProcessed:         pagesProcessed,
		WebhookReconcileMillis: reconcileMillis,
	}, nil
}

// Setup configures OpenTelemetry tracing and metrics and returns a shutdown
// function. The exporter is only started when TracingEnabled is true; the
// no-op shutdown keeps call sites unconditional either way.
func Setup(ctx context.Context, cfg config.TelemetryConfig, serviceName string) (func(context.Context) error, error) {
	if !cfg.TracingEnabled {
		return func(context.Context) error { return nil }, nil
	}

	ratio := cfg.SampleRatio
	if ratio <= 0 {
		ratio = 1.0
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	traceExporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(cfg.Endpoint), otlptracehttp.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("otel trace exporter: %w", err)
	}

	sampler := trace.ParentBased(trace.TraceIDRatioBased(ratio))
	tp := trace.NewTracerProvider(
		trace.WithSampler(sampler),
		trace.WithBatcher(traceExporter),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	shutdownMetrics := func(context.Context) error { return nil }
	if cfg.MetricsEnabled {
		metricExporter, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(cfg.Endpoint), otlpmetrichttp.WithInsecure())
		if err != nil {
			return nil, fmt.Errorf("otel metric exporter: %w", err)
		}

		interval := cfg.MetricsInterval
		if interval <= 0 {
			interval = 15 * time.Second
		}

		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(interval))),
		)
		otel.SetMeterProvider(mp)
		shutdownMetrics = mp.Shutdown
	}

	return func(shutdownCtx context.Context) error {
		if err := shutdownMetrics(shutdownCtx); err != nil {
			return err
		}
		return tp.Shutdown(shutdownCtx)
	}, nil
}

// Meter returns the named meter off the globally installed MeterProvider.
// NewMetrics is its only caller.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}
