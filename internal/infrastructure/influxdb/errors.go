package influxdb

import "errors"

// Sentinel errors for the publish history sink.
//
// The relay treats all of them as non-fatal: history is best effort and
// publishing continues without it.
var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed is returned when the startup ping fails or the
	// server reports itself unhealthy.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected is returned by HealthCheck after Close.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrWriteFailed wraps batch write errors passed to the SetOnError callback.
	ErrWriteFailed = errors.New("influxdb: write failed")
)
