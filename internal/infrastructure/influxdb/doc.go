// Package influxdb records the relay's publish history in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched writes and health monitoring. Each publish attempt
// becomes one point in the relay_publish measurement, tagged with topic,
// trigger and outcome; each watcher restart becomes one relay_watcher_restart
// point tagged with the watched path.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WritePublish("sensors/temp", "file_change", true)
//	client.WriteWatcherRestart("/run/sensors/temp")
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered to the
// SetOnError callback. Connection and health check errors are returned
// directly. The relay treats history as best effort: a failed connection
// is logged and history is skipped.
package influxdb
