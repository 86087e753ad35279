package mqtt

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// maxTopicLength is the longest topic the MQTT wire format can carry.
const maxTopicLength = 65535

// ValidateTopic checks that topic can be used as a publish topic.
//
// A publish topic must be non-empty valid UTF-8, at most 65535 bytes,
// and must not contain the wildcards '+' and '#' or the NUL character.
//
// Returns:
//   - error: wrapping ErrInvalidTopic, or nil if valid
func ValidateTopic(topic string) error {
	switch {
	case topic == "":
		return fmt.Errorf("%w: topic cannot be empty", ErrInvalidTopic)
	case len(topic) > maxTopicLength:
		return fmt.Errorf("%w: topic length %d exceeds %d bytes", ErrInvalidTopic, len(topic), maxTopicLength)
	case !utf8.ValidString(topic):
		return fmt.Errorf("%w: topic is not valid UTF-8", ErrInvalidTopic)
	case strings.ContainsAny(topic, "+#"):
		return fmt.Errorf("%w: %q contains a wildcard", ErrInvalidTopic, topic)
	case strings.ContainsRune(topic, 0):
		return fmt.Errorf("%w: topic contains a NUL character", ErrInvalidTopic)
	}
	return nil
}

// validateQoS checks that qos is 0, 1, or 2.
func validateQoS(qos int) error {
	if qos < 0 || qos > maxQoS {
		return fmt.Errorf("%w: got %d", ErrInvalidQoS, qos)
	}
	return nil
}
