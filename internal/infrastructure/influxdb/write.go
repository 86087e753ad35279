package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurements written by the relay.
const (
	// publishMeasurement holds one point per publish attempt.
	publishMeasurement = "relay_publish"

	// watcherRestartMeasurement holds one point per watcher restart.
	watcherRestartMeasurement = "relay_watcher_restart"
)

// WritePublish records a publish attempt.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Nothing is written after Close.
//
// Parameters:
//   - topic: the publish topic
//   - trigger: what caused the publish (connect, file_change, refresh)
//   - ok: whether the message was handed to the broker client
//
// Example:
//
//	client.WritePublish("sensors/temp", "refresh", true)
func (c *Client) WritePublish(topic, trigger string, ok bool) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(newPublishPoint(topic, trigger, ok, time.Now()))
}

// newPublishPoint builds the point for one publish attempt.
func newPublishPoint(topic, trigger string, ok bool, at time.Time) *write.Point {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}

	return write.NewPoint(
		publishMeasurement,
		map[string]string{
			"topic":   topic,
			"trigger": trigger,
			"outcome": outcome,
		},
		map[string]interface{}{
			"ok": ok,
		},
		at,
	)
}

// WriteWatcherRestart records that the file watcher re-created its
// subscription for path. Non-blocking; nothing is written after Close.
func (c *Client) WriteWatcherRestart(path string) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(newWatcherRestartPoint(path, time.Now()))
}

// newWatcherRestartPoint builds the point for one watcher restart.
func newWatcherRestartPoint(path string, at time.Time) *write.Point {
	return write.NewPoint(
		watcherRestartMeasurement,
		map[string]string{"path": path},
		map[string]interface{}{"count": 1},
		at,
	)
}
