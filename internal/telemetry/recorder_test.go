package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/nerrad567/mqtt-relay/internal/infrastructure/config"
)

// useManualReader installs an in-memory meter provider for the test.
func useManualReader(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()
	previous := otel.GetMeterProvider()
	reader := sdkmetric.NewManualReader()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	resetInstruments()
	t.Cleanup(func() {
		otel.SetMeterProvider(previous)
		resetInstruments()
	})
	return reader
}

// counterValue sums the data points of the named counter that carry attr.
func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name string, attr attribute.KeyValue) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s data = %T, want Sum[int64]", name, m.Data)
			}
			for _, dp := range sum.DataPoints {
				if attr.Key == "" {
					total += dp.Value
					continue
				}
				if v, ok := dp.Attributes.Value(attr.Key); ok && v == attr.Value {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestRecordPublish(t *testing.T) {
	reader := useManualReader(t)
	ctx := context.Background()

	RecordPublish(ctx, "refresh", true)
	RecordPublish(ctx, "refresh", true)
	RecordPublish(ctx, "connect", false)

	if got := counterValue(t, reader, "mqttrelay.publishes.total", attribute.String("status", "ok")); got != 2 {
		t.Errorf("ok publishes = %d, want 2", got)
	}
	if got := counterValue(t, reader, "mqttrelay.publishes.total", attribute.String("trigger", "connect")); got != 1 {
		t.Errorf("connect publishes = %d, want 1", got)
	}
}

func TestRecordEventAndConnect(t *testing.T) {
	reader := useManualReader(t)
	ctx := context.Background()

	RecordEvent(ctx, "file_changed")
	RecordEvent(ctx, "broker_connected")
	RecordBrokerConnect(ctx, 5)
	RecordWatcherRestart(ctx)

	if got := counterValue(t, reader, "mqttrelay.events.total", attribute.String("kind", "file_changed")); got != 1 {
		t.Errorf("file_changed events = %d, want 1", got)
	}
	if got := counterValue(t, reader, "mqttrelay.broker.connects.total", attribute.String("code", "5")); got != 1 {
		t.Errorf("connects with code 5 = %d, want 1", got)
	}
	if got := counterValue(t, reader, "mqttrelay.watcher.restarts.total", attribute.KeyValue{}); got != 1 {
		t.Errorf("watcher restarts = %d, want 1", got)
	}
}

func TestStatusStr(t *testing.T) {
	if got := statusStr(true); got != "ok" {
		t.Errorf("statusStr(true) = %q, want ok", got)
	}
	if got := statusStr(false); got != "error" {
		t.Errorf("statusStr(false) = %q, want error", got)
	}
}

func TestInit_DisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), config.TelemetryConfig{}, "test")
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}
