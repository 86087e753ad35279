// Package relay runs the main loop that turns queued events into publishes.
//
// The relay owns no goroutines of its own. The file watcher and the broker
// client post events to a shared event.Queue; Run is the only consumer and
// the only caller of PublishFile.
//
// Publishes happen on three triggers:
//   - connect: the broker accepted a connection (also after each reconnect)
//   - file_change: the watcher saw the file change
//   - refresh: the refresh interval passed without any event
//
// If no connection is seen within the connect timeout, Run fails with
// ErrConnectTimeout.
package relay
