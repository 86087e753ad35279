package mqtt

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"unicode"
)

// Maximum payload size for MQTT messages (1MB).
// This prevents resource exhaustion and aligns with typical broker limits.
const maxPayloadSize = 1 << 20 // 1MB

// PublishFile publishes the contents of the file at path to topic.
//
// The file is read on every call and trailing whitespace is removed.
// When the file does not exist the fallback payload is published once; while
// it stays missing later calls publish nothing. A successful read clears
// that state. An empty fallback publishes a zero-length message, which
// clears a retained topic on the broker.
//
// Parameters:
//   - path: file to read
//   - topic: publish topic (no wildcards)
//   - qos: Quality of Service level (0, 1, or 2)
//   - retain: whether the broker should retain the message
//
// Returns:
//   - bool: true only when a message was handed to the client library
//     for delivery. Failures are logged, never returned.
//
// PublishFile is not safe for concurrent use.
func (c *Client) PublishFile(path, topic string, qos byte, retain bool) bool {
	// Checked before reading so a missing file is still reported once the
	// link is back.
	if !c.IsConnected() {
		c.logger.Warn("not publishing file, broker link is down", "path", path)
		return false
	}

	payload, ok := c.readPayload(path)
	if !ok {
		return false
	}

	c.logger.Info("publishing file", "path", path, "topic", topic)
	if err := c.Publish(topic, []byte(payload), qos, retain); err != nil {
		c.logger.Error("error publishing message", "topic", topic, "error", err)
		return false
	}
	return true
}

// readPayload returns the payload to publish for path, applying the
// missing-file rules.
//
// Returns:
//   - string: the payload
//   - bool: false when nothing should be published
func (c *Client) readPayload(path string) (string, bool) {
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		c.fileMissing = false
		return strings.TrimRightFunc(string(data), unicode.IsSpace), true

	case errors.Is(err, fs.ErrNotExist):
		if c.fileMissing {
			return "", false
		}
		c.logger.Error("file not found, publishing fallback payload", "path", path, "error", err)
		c.fileMissing = true
		return c.fallback, true

	default:
		c.logger.Error("cannot read file", "path", path, "error", err)
		return "", false
	}
}

// Publish sends a message to the specified MQTT topic.
//
// It returns once paho has accepted the message for delivery; broker
// acknowledgement for QoS 1 and 2 is left to the library.
//
// Parameters:
//   - topic: The topic to publish to
//   - payload: The message payload (max 1MB)
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker should retain the message for new subscribers
//
// QoS Levels:
//   - 0: At most once (fire and forget)
//   - 1: At least once (guaranteed delivery, may duplicate)
//   - 2: Exactly once (guaranteed, no duplicates, higher overhead)
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	// Validate inputs
	if err := ValidateTopic(topic); err != nil {
		return err
	}
	if err := validateQoS(int(qos)); err != nil {
		return err
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	// Check connection state
	if !c.IsConnected() {
		return ErrNotConnected
	}

	// Errors detected before the message is queued complete the token at once.
	token := c.client.Publish(topic, qos, retained, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("%w: %w", ErrPublishFailed, err)
		}
	default:
	}

	return nil
}
