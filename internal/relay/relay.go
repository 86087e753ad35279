package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/mqtt-relay/internal/event"
	"github.com/nerrad567/mqtt-relay/internal/infrastructure/mqtt"
)

// ErrConnectTimeout is returned when no connection result arrives within the
// connect timeout.
var ErrConnectTimeout = errors.New("relay: timed out connecting to broker")

// Trigger names what caused a publish.
type Trigger string

const (
	TriggerConnect    Trigger = "connect"
	TriggerFileChange Trigger = "file_change"
	TriggerRefresh    Trigger = "refresh"
)

// State is the relay loop's lifecycle phase.
type State int32

const (
	StateStarting State = iota
	StateConnecting
	StateRunning
	StateShuttingDown
	StateStopped
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateConnecting:
		return "connecting"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Broker is the broker connection the relay publishes through.
type Broker interface {
	Connect(ctx context.Context) error
	PublishFile(path, topic string, qos byte, retain bool) bool
	Close() error
}

// FileWatcher reports file changes to the relay's queue.
type FileWatcher interface {
	Start(ctx context.Context) error
	Stop()
}

// Logger defines the logging interface for the relay.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Relay.
type Options struct {
	// Path is the watched file whose contents are published.
	Path   string
	Topic  string
	QoS    byte
	Retain bool

	// ConnectTimeout is the total budget for the first connection result.
	ConnectTimeout time.Duration

	// RefreshInterval is how often the file is republished when idle.
	RefreshInterval time.Duration

	// OnEvent is called for every event taken off the queue. Optional.
	OnEvent func(ev event.Event)

	// OnPublish is called after every publish attempt. Optional.
	OnPublish func(trigger Trigger, ok bool)
}

// Stats is a snapshot of the relay's progress.
type Stats struct {
	State           State
	EverConnected   bool
	Publishes       uint64
	PublishFailures uint64
	LastPublishAt   time.Time
	LastTrigger     Trigger
}

// Relay is the single consumer of the event queue and the only caller of
// Broker.PublishFile.
type Relay struct {
	opts    Options
	queue   *event.Queue
	broker  Broker
	watcher FileWatcher
	logger  Logger

	mu    sync.Mutex
	stats Stats
}

// New creates a relay. Nothing runs until Run is called.
func New(opts Options, queue *event.Queue, broker Broker, watcher FileWatcher) *Relay {
	return &Relay{
		opts:    opts,
		queue:   queue,
		broker:  broker,
		watcher: watcher,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the relay.
func (r *Relay) SetLogger(logger Logger) {
	r.logger = logger
}

// Stats returns a snapshot of the relay's counters. Safe for concurrent use.
func (r *Relay) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *Relay) setState(s State) {
	r.mu.Lock()
	r.stats.State = s
	r.mu.Unlock()
}

func (r *Relay) everConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats.EverConnected
}

// Run starts the watcher, connects to the broker and processes events until
// ctx is cancelled or a fatal error occurs.
//
// Until a connection is accepted every wait lasts whatever is left of the
// connect timeout, measured from the start of the connection attempt; after
// that every wait lasts the refresh interval. A wait that
// ends without events republishes the file once a connection has been seen,
// and is fatal before that.
//
// The watcher is stopped and the broker closed on every return path.
//
// Returns:
//   - error: nil after cancellation, ErrConnectTimeout, or the watcher or
//     broker error that stopped the relay
func (r *Relay) Run(ctx context.Context) (err error) {
	defer r.shutdown()

	r.setState(StateStarting)
	r.logger.Info("starting relay", "path", r.opts.Path, "topic", r.opts.Topic)
	if err := r.watcher.Start(ctx); err != nil {
		return err
	}

	r.setState(StateConnecting)
	started := time.Now()
	connectCtx, cancel := context.WithTimeout(ctx, r.opts.ConnectTimeout)
	err = r.broker.Connect(connectCtx)
	cancel()
	if err != nil {
		return err
	}

	sleep := r.connectBudgetLeft(started)

	r.setState(StateRunning)
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := r.queue.Wait(ctx, sleep); err != nil {
			return nil
		}

		switch {
		case r.queue.Check():
			r.drain()
		case r.everConnected():
			r.logger.Debug("refresh interval elapsed")
			r.publish(TriggerRefresh)
		default:
			return fmt.Errorf("%w after %v", ErrConnectTimeout, time.Since(started).Round(time.Millisecond))
		}

		// Refusals and early file changes do not extend the connect budget.
		if r.everConnected() {
			sleep = r.opts.RefreshInterval
		} else {
			sleep = r.connectBudgetLeft(started)
		}
	}
}

// connectBudgetLeft returns what remains of the connect timeout measured
// from started, never negative.
func (r *Relay) connectBudgetLeft(started time.Time) time.Duration {
	left := r.opts.ConnectTimeout - time.Since(started)
	if left < 0 {
		return 0
	}
	return left
}

// drain handles every queued event in order.
func (r *Relay) drain() {
	for {
		ev, ok := r.queue.Pop()
		if !ok {
			return
		}
		r.handle(ev)
	}
}

// handle dispatches one event.
func (r *Relay) handle(ev event.Event) {
	r.logger.Debug("handling event", "kind", ev.Kind.String(), "result_code", ev.ResultCode)
	if r.opts.OnEvent != nil {
		r.opts.OnEvent(ev)
	}

	switch ev.Kind {
	case event.KindBrokerConnected:
		if ev.ResultCode != 0 {
			r.logger.Error("broker refused connection",
				"result_code", ev.ResultCode,
				"reason", mqtt.ConnackString(ev.ResultCode),
			)
			return
		}
		r.mu.Lock()
		r.stats.EverConnected = true
		r.mu.Unlock()
		r.publish(TriggerConnect)

	case event.KindFileChanged:
		r.publish(TriggerFileChange)

	default:
		r.logger.Error("unknown event", "kind", ev.Kind.String())
	}
}

// publish sends the file's current contents and records the outcome.
func (r *Relay) publish(trigger Trigger) {
	ok := r.broker.PublishFile(r.opts.Path, r.opts.Topic, r.opts.QoS, r.opts.Retain)

	r.mu.Lock()
	r.stats.LastTrigger = trigger
	if ok {
		r.stats.Publishes++
		r.stats.LastPublishAt = time.Now()
	} else {
		r.stats.PublishFailures++
	}
	r.mu.Unlock()

	if r.opts.OnPublish != nil {
		r.opts.OnPublish(trigger, ok)
	}
}

// shutdown stops the watcher and closes the broker connection.
func (r *Relay) shutdown() {
	r.setState(StateShuttingDown)
	r.logger.Info("shutting down relay")

	r.watcher.Stop()
	if err := r.broker.Close(); err != nil {
		r.logger.Warn("closing broker connection", "error", err)
	}

	r.setState(StateStopped)
}
