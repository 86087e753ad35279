package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nerrad567/mqtt-relay/internal/event"
)

// ErrSetupFailed is returned when the filesystem subscription cannot be created.
var ErrSetupFailed = errors.New("watcher: setup failed")

// errShutdown signals that the main loop ended because Stop was requested.
var errShutdown = errors.New("watcher: shutdown requested")

// restartOps are the operations that invalidate the current subscription.
const restartOps = fsnotify.Create | fsnotify.Remove | fsnotify.Rename | fsnotify.Chmod

// State represents what the watcher is currently subscribed to.
type State int32

const (
	StateIdle State = iota
	StateWatchingFile
	StateWatchingParent
	StateRestarting
	StateShuttingDown
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWatchingFile:
		return "watching_file"
	case StateWatchingParent:
		return "watching_parent"
	case StateRestarting:
		return "restarting"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}

// Config holds configuration for a file watcher.
type Config struct {
	// Path is the file whose changes are reported.
	Path string

	// TriggerDelay is how long to collect events after the first one
	// arrives in file mode before posting a change.
	TriggerDelay time.Duration

	// RestartDelay is the pause between tearing down and re-creating
	// the subscription.
	RestartDelay time.Duration

	// OnRestart is called each time the subscription is torn down for a
	// restart. Optional.
	OnRestart func()
}

// Logger defines the logging interface for the watcher.
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

// Watcher posts event.FileChanged to a queue whenever the watched file may
// have changed.
type Watcher struct {
	cfg    Config
	parent string
	queue  event.Poster
	logger Logger

	state atomic.Int32

	// fsw is owned by the run goroutine after Start.
	fsw *fsnotify.Watcher

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	stopped chan struct{}
}

// New creates a watcher for cfg.Path that posts to queue.
// The watcher does nothing until Start is called.
func New(cfg Config, queue event.Poster) *Watcher {
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = 5 * time.Second
	}
	cfg.Path = filepath.Clean(cfg.Path)

	return &Watcher{
		cfg:    cfg,
		parent: filepath.Dir(cfg.Path),
		queue:  queue,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the watcher.
func (w *Watcher) SetLogger(logger Logger) {
	w.logger = logger
}

// State returns the current watch state.
func (w *Watcher) State() State {
	return State(w.state.Load())
}

func (w *Watcher) setState(s State) {
	w.state.Store(int32(s))
}

// Start creates the initial subscription and launches the watch goroutine.
//
// A failure to subscribe to either the file or its parent directory is
// returned wrapped in ErrSetupFailed; the goroutine is not started.
// Cancelling ctx has the same effect as Stop.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher for %s is already running", w.cfg.Path)
	}

	if err := w.setup(); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.stopped = make(chan struct{})
	w.running = true

	go w.run(runCtx)

	return nil
}

// Stop requests shutdown and waits for the watch goroutine to exit.
// It interrupts a pending trigger or restart delay. Safe to call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	cancel := w.cancel
	stopped := w.stopped
	w.mu.Unlock()

	cancel()
	<-stopped
}

// setup creates a fresh subscription on the file, or on its parent
// directory when the file is absent or unreadable.
func (w *Watcher) setup() error {
	w.logger.Info("setting up watcher", "path", w.cfg.Path)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: creating fsnotify watcher: %w", ErrSetupFailed, err)
	}

	if fileReadable(w.cfg.Path) {
		err := fsw.Add(w.cfg.Path)
		if err == nil {
			w.fsw = fsw
			w.setState(StateWatchingFile)
			w.logger.Info("watching file path", "path", w.cfg.Path)
			return nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			fsw.Close()
			return fmt.Errorf("%w: watching %s: %w", ErrSetupFailed, w.cfg.Path, err)
		}
		// The file vanished between the check and the watch.
	}

	if err := fsw.Add(w.parent); err != nil {
		fsw.Close()
		return fmt.Errorf("%w: watching parent %s: %w", ErrSetupFailed, w.parent, err)
	}
	w.fsw = fsw
	w.setState(StateWatchingParent)
	w.logger.Info("watching parent directory", "path", w.parent)
	return nil
}

// teardown closes the current subscription.
func (w *Watcher) teardown() {
	if w.fsw == nil {
		return
	}
	w.logger.Info("cleaning up watcher")
	if err := w.fsw.Close(); err != nil {
		w.logger.Warn("closing fsnotify watcher", "error", err)
	}
	w.fsw = nil
}

// run is the watch goroutine: main loop, then restart, until shutdown.
func (w *Watcher) run(ctx context.Context) {
	defer close(w.stopped)
	defer w.teardown()

	for {
		err := w.mainLoop(ctx)
		if errors.Is(err, errShutdown) {
			w.setState(StateShuttingDown)
			w.logger.Info("shutting down watcher")
			return
		}
		if err != nil {
			w.logger.Error("watcher error", "error", err)
		}

		previous := w.State()
		if !w.restart(ctx) {
			w.setState(StateShuttingDown)
			w.logger.Info("shutting down watcher")
			return
		}

		// Covers the creation that caused the restart and any write made
		// before the file subscription existed.
		if previous == StateWatchingParent && w.State() == StateWatchingFile {
			w.logger.Debug("file appeared, triggering catch-up event")
			w.queue.Post(event.FileChanged())
		}
	}
}

// restart tears down the subscription and sets it up again after the
// restart delay, retrying until it succeeds.
//
// Returns:
//   - bool: false if shutdown was requested while restarting
func (w *Watcher) restart(ctx context.Context) bool {
	w.teardown()
	w.setState(StateRestarting)
	if w.cfg.OnRestart != nil {
		w.cfg.OnRestart()
	}

	for {
		w.logger.Info("restarting watcher after delay", "delay", w.cfg.RestartDelay)
		if !sleep(ctx, w.cfg.RestartDelay) {
			return false
		}
		err := w.setup()
		if err == nil {
			return true
		}
		w.logger.Error("watcher setup failed", "error", err)
	}
}

// mainLoop processes filesystem events until a restart is needed.
//
// Returns:
//   - error: errShutdown on Stop, a watch error, or nil when an event
//     invalidated the subscription
func (w *Watcher) mainLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return errShutdown

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("fsnotify event channel closed")
			}

			mode := w.State()
			if mode == StateWatchingFile && w.cfg.TriggerDelay > 0 {
				if !sleep(ctx, w.cfg.TriggerDelay) {
					return errShutdown
				}
			}
			batch := append([]fsnotify.Event{ev}, w.drain()...)

			for _, e := range batch {
				w.logger.Debug("filesystem event", "name", e.Name, "op", e.Op.String())
			}

			update, restart := classify(batch, mode, w.cfg.Path)
			// In parent mode a restart that finds the file posts the
			// catch-up event instead, so a creation is reported once.
			if restart && mode == StateWatchingParent {
				update = false
			}
			if update {
				w.logger.Debug("file change detected, triggering event")
				w.queue.Post(event.FileChanged())
			}
			if restart {
				return nil
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("fsnotify error channel closed")
			}
			return fmt.Errorf("fsnotify: %w", err)
		}
	}
}

// drain returns every event already queued by fsnotify without blocking.
func (w *Watcher) drain() []fsnotify.Event {
	var batch []fsnotify.Event
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return batch
			}
			batch = append(batch, ev)
		default:
			return batch
		}
	}
}

// classify decides what a batch of events means for the watched path.
//
// In parent mode only events naming the watched file or the directory itself
// count; siblings are ignored.
//
// Returns:
//   - update: at least one relevant event occurred
//   - restart: at least one relevant event invalidates the subscription
func classify(batch []fsnotify.Event, mode State, path string) (update, restart bool) {
	parent := filepath.Dir(path)
	for _, ev := range batch {
		if mode == StateWatchingParent {
			name := filepath.Clean(ev.Name)
			if name != path && name != parent {
				continue
			}
		}
		update = true
		if ev.Op&restartOps != 0 {
			restart = true
		}
	}
	return update, restart
}

// fileReadable reports whether path is a regular file the process can open.
func fileReadable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// sleep waits for d or until ctx is done.
//
// Returns:
//   - bool: false if ctx ended the wait
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
