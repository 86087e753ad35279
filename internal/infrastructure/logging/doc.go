// Package logging provides structured logging for the relay.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across every component.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Size-based log file rotation via lumberjack
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, file
//	  file:
//	    path: "/var/log/mqtt-relay.log"
//	    max_size: 10     # megabytes
//	    max_backups: 3
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	defer logger.Close()
//	logger.Info("publishing file", "path", path)
//
// Never log broker passwords or InfluxDB tokens.
package logging
