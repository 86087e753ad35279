// Package watcher observes a single file and reports changes to the relay.
//
// The watcher subscribes to fsnotify events on the file itself when it exists
// and is readable, or on its parent directory otherwise so that re-creation is
// noticed. Any event that can invalidate the subscription (create, remove,
// rename, chmod) tears it down, waits the restart delay and subscribes again,
// which moves the watcher between file and parent mode as the file comes and
// goes.
//
// Each batch of filesystem events produces at most one event.FileChanged.
// In file mode the batch is collected after a short trigger delay so a burst of
// writes coalesces into a single notification. A file appearing while the
// parent is watched is reported once, after the file subscription is in
// place, so writes made during the restart delay are not missed.
//
// Only the initial subscription failure is fatal. Later failures are logged
// and retried after the restart delay for the life of the process.
//
// Usage:
//
//	w := watcher.New(watcher.Config{
//	    Path:         "/run/sensor/value",
//	    TriggerDelay: time.Second,
//	    RestartDelay: 5 * time.Second,
//	}, queue)
//	w.SetLogger(log)
//	if err := w.Start(ctx); err != nil {
//	    return err
//	}
//	defer w.Stop()
package watcher
