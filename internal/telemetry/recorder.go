package telemetry

import (
	"context"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/nerrad567/mqtt-relay"

// instruments holds the lazily created metric instruments.
type instruments struct {
	eventsTotal          metric.Int64Counter
	publishesTotal       metric.Int64Counter
	watcherRestartsTotal metric.Int64Counter
	brokerConnectsTotal  metric.Int64Counter
}

var (
	instMu   sync.Mutex
	instOnce = new(sync.Once)
	inst     instruments
)

// resetInstruments makes the next Record* call create instruments against
// the current global MeterProvider.
func resetInstruments() {
	instMu.Lock()
	instOnce = new(sync.Once)
	instMu.Unlock()
}

// getInstruments returns the instruments, creating them on first use.
func getInstruments() *instruments {
	instMu.Lock()
	once := instOnce
	instMu.Unlock()

	once.Do(func() {
		m := otel.GetMeterProvider().Meter(meterName)

		inst.eventsTotal, _ = m.Int64Counter("mqttrelay.events.total",
			metric.WithDescription("Total events handled by the relay loop"),
		)
		inst.publishesTotal, _ = m.Int64Counter("mqttrelay.publishes.total",
			metric.WithDescription("Total publish attempts"),
		)
		inst.watcherRestartsTotal, _ = m.Int64Counter("mqttrelay.watcher.restarts.total",
			metric.WithDescription("Total file watcher restarts"),
		)
		inst.brokerConnectsTotal, _ = m.Int64Counter("mqttrelay.broker.connects.total",
			metric.WithDescription("Total broker connection results"),
		)
	})
	return &inst
}

// statusStr returns "ok" or "error".
func statusStr(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// RecordEvent counts an event taken off the queue.
func RecordEvent(ctx context.Context, kind string) {
	getInstruments().eventsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordPublish counts a publish attempt and its outcome.
func RecordPublish(ctx context.Context, trigger string, ok bool) {
	getInstruments().publishesTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("trigger", trigger),
			attribute.String("status", statusStr(ok)),
		),
	)
}

// RecordWatcherRestart counts a file watcher restart.
func RecordWatcherRestart(ctx context.Context) {
	getInstruments().watcherRestartsTotal.Add(ctx, 1)
}

// RecordBrokerConnect counts a connection result by CONNACK code.
func RecordBrokerConnect(ctx context.Context, code byte) {
	getInstruments().brokerConnectsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("code", strconv.Itoa(int(code)))),
	)
}
