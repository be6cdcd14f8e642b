// Package telemetry wires the OTLP metric exporter.
package telemetry

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// MeterName is the instrumentation scope of every viruscan instrument.
const MeterName = "github.com/lefred/mysql-component-viruscan"

// Shutdown flushes and stops the exporter.
type Shutdown func(context.Context) error

// InitMetrics pushes metrics to an OTLP gRPC collector at endpoint. With an
// empty endpoint, or when the exporter cannot be created, it returns the
// global (no-op by default) meter and a no-op shutdown.
func InitMetrics(ctx context.Context, service, endpoint string, interval time.Duration, log *slog.Logger) (metric.Meter, Shutdown) {
	noop := func(context.Context) error { return nil }
	if endpoint == "" {
		return otel.Meter(MeterName), noop
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	res, err := sdkresource.Merge(sdkresource.Default(), sdkresource.NewSchemaless(
		semconv.ServiceName(service),
	))
	if err != nil {
		log.Warn("metrics resource", "error", err)
		res = sdkresource.Default()
	}
	ctxInit, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	exp, err := otlpmetricgrpc.New(ctxInit,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		log.Warn("metrics exporter init failed", "error", err)
		return otel.Meter(MeterName), noop
	}
	reader := sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))
	otel.SetMeterProvider(mp)
	log.Info("metrics initialized", "endpoint", endpoint)
	return mp.Meter(MeterName), mp.Shutdown
}
