package mqtt

import "errors"

// Sentinel errors for the broker client. Check them with errors.Is.
var (
	// ErrConnectionFailed means the initial connection attempt failed below
	// the MQTT layer (DNS, TCP, TLS) or with an unexpected CONNACK.
	// CONNACK refusals 1-5 are reported as events instead.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrNotConnected is returned by Publish and HealthCheck while the link is down.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrPublishFailed wraps oversized payloads and errors paho reports
	// before the message is queued.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrInvalidTopic wraps topic validation failures.
	ErrInvalidTopic = errors.New("mqtt: invalid topic")

	// ErrInvalidQoS is returned for QoS values outside 0-2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")
)
