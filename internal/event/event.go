package event

import (
	"fmt"
	"time"
)

// Kind identifies what an Event reports.
type Kind int

const (
	// KindBrokerConnected reports the outcome of a broker connection attempt.
	KindBrokerConnected Kind = iota + 1

	// KindFileChanged reports that the watched file may have changed.
	KindFileChanged
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindBrokerConnected:
		return "broker_connected"
	case KindFileChanged:
		return "file_changed"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Event is an immutable notification handed from a producer to the relay loop.
// Construction has no side effects: producers build the value and then Post it.
type Event struct {
	Kind Kind

	// ResultCode is the CONNACK return code for KindBrokerConnected.
	// 0 means the connection was accepted.
	ResultCode byte

	// At is when the producer observed the condition.
	At time.Time
}

// BrokerConnected returns a connection outcome event.
func BrokerConnected(code byte) Event {
	return Event{Kind: KindBrokerConnected, ResultCode: code, At: time.Now()}
}

// FileChanged returns a file change event.
func FileChanged() Event {
	return Event{Kind: KindFileChanged, At: time.Now()}
}
