// Package telemetry exports relay counters as OpenTelemetry metrics.
//
// Init installs a global MeterProvider that pushes to an OTLP/HTTP endpoint.
// Without an endpoint the global no-op provider stays in place and the
// Record* helpers cost next to nothing.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/nerrad567/mqtt-relay/internal/infrastructure/config"
)

const serviceName = "mqtt-relay"

// defaultExportInterval is used when the config leaves the interval unset.
const defaultExportInterval = 30 * time.Second

// Shutdown flushes and stops the meter provider.
type Shutdown func(ctx context.Context) error

// Init sets up metric export according to cfg.
//
// Parameters:
//   - ctx: used while creating the exporter
//   - cfg: telemetry settings; an empty MetricsURL disables export
//   - version: reported as service.version
//
// Returns:
//   - Shutdown: always non-nil, flushes pending metrics
//   - error: if the exporter cannot be created
func Init(ctx context.Context, cfg config.TelemetryConfig, version string) (Shutdown, error) {
	noop := func(context.Context) error { return nil }
	if cfg.MetricsURL == "" {
		return noop, nil
	}

	exporter, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(cfg.MetricsURL))
	if err != nil {
		return noop, fmt.Errorf("creating OTLP metric exporter: %w", err)
	}

	interval := time.Duration(cfg.ExportInterval) * time.Second
	if interval <= 0 {
		interval = defaultExportInterval
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
		sdkmetric.WithResource(resource.NewSchemaless(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", version),
		)),
	)
	otel.SetMeterProvider(provider)
	resetInstruments()

	return provider.Shutdown, nil
}
