package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/mqtt-relay/internal/event"
	"github.com/nerrad567/mqtt-relay/internal/infrastructure/config"
	"github.com/nerrad567/mqtt-relay/internal/infrastructure/influxdb"
	"github.com/nerrad567/mqtt-relay/internal/infrastructure/logging"
	"github.com/nerrad567/mqtt-relay/internal/infrastructure/mqtt"
	"github.com/nerrad567/mqtt-relay/internal/pidfile"
	"github.com/nerrad567/mqtt-relay/internal/relay"
	"github.com/nerrad567/mqtt-relay/internal/status"
	"github.com/nerrad567/mqtt-relay/internal/telemetry"
	"github.com/nerrad567/mqtt-relay/internal/watcher"
)

// telemetryShutdownTimeout bounds the final metrics flush.
const telemetryShutdownTimeout = 5 * time.Second

// runRelay wires the components together and runs the relay until ctx is
// cancelled or the relay fails.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - cfg: Finalised configuration
//   - debug: Also route the MQTT library's debug output
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func runRelay(ctx context.Context, cfg *config.Config, debug bool) error {
	log := logging.New(cfg.Logging, version)
	defer log.Close() //nolint:errcheck // nothing useful to do on exit
	log.Info("starting mqtt-relay",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	mqtt.RouteLibraryLogs(log.With("component", "paho"), debug)

	// PID file
	if cfg.PIDFile != "" {
		pid, err := pidfile.Acquire(cfg.PIDFile)
		if err != nil {
			return fmt.Errorf("acquiring pid file: %w", err)
		}
		defer func() {
			if releaseErr := pid.Release(); releaseErr != nil {
				log.Error("error removing pid file", "error", releaseErr)
			}
		}()
		log.Info("pid file written", "path", pid.Path())
	}

	// Metrics export (optional)
	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry, version)
	if err != nil {
		log.Warn("metrics export disabled", "error", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if shutdownErr := shutdownTelemetry(flushCtx); shutdownErr != nil {
			log.Error("error flushing metrics", "error", shutdownErr)
		}
	}()

	// Publish history (optional)
	history := connectHistory(ctx, cfg.InfluxDB, log)
	if history != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := history.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	queue := event.NewQueue()

	fileWatcher := watcher.New(watcher.Config{
		Path:         cfg.Relay.Path,
		TriggerDelay: cfg.GetTriggerDelay(),
		RestartDelay: cfg.GetRestartDelay(),
		OnRestart: func() {
			telemetry.RecordWatcherRestart(ctx)
			if history != nil {
				history.WriteWatcherRestart(cfg.Relay.Path)
			}
		},
	}, queue)
	fileWatcher.SetLogger(log.With("component", "watcher"))

	broker, err := mqtt.New(cfg.MQTT, cfg.Relay.PayloadFileMissing, queue, log.With("component", "mqtt"))
	if err != nil {
		return fmt.Errorf("creating MQTT client: %w", err)
	}
	log.Info("MQTT client configured",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
		"tls", cfg.MQTT.TLS.Enabled,
	)

	r := relay.New(relay.Options{
		Path:            cfg.Relay.Path,
		Topic:           cfg.MQTT.Topic,
		QoS:             byte(cfg.MQTT.QoS), // #nosec G115 -- validated to 0..2
		Retain:          cfg.MQTT.Retain,
		ConnectTimeout:  cfg.GetConnectTimeout(),
		RefreshInterval: cfg.GetRefreshInterval(),
		OnEvent: func(ev event.Event) {
			telemetry.RecordEvent(ctx, ev.Kind.String())
			if ev.Kind == event.KindBrokerConnected {
				telemetry.RecordBrokerConnect(ctx, ev.ResultCode)
			}
		},
		OnPublish: func(trigger relay.Trigger, ok bool) {
			telemetry.RecordPublish(ctx, string(trigger), ok)
			if history != nil {
				history.WritePublish(cfg.MQTT.Topic, string(trigger), ok)
			}
		},
	}, queue, broker, fileWatcher)
	r.SetLogger(log.With("component", "relay"))

	// Status endpoint (optional)
	if cfg.Status.Enabled {
		srv := status.New(status.Deps{
			Listen:  cfg.Status.Listen,
			Path:    cfg.Relay.Path,
			Topic:   cfg.MQTT.Topic,
			Version: version,
			Relay:   r,
			Broker:  broker,
			Watcher: fileWatcher,
			Logger:  log.With("component", "status"),
		})
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error stopping status server", "error", closeErr)
			}
		}()
	}

	if err := r.Run(ctx); err != nil {
		log.Error("relay stopped", "error", err)
		return err
	}

	log.Info("mqtt-relay stopped")
	return nil
}

// connectHistory connects the InfluxDB publish history when enabled.
// Failures are logged and leave history disabled; the relay runs without it.
func connectHistory(ctx context.Context, cfg config.InfluxDBConfig, log *logging.Logger) *influxdb.Client {
	if !cfg.Enabled {
		log.Debug("InfluxDB disabled")
		return nil
	}

	client, err := influxdb.Connect(ctx, cfg)
	if err != nil {
		if !errors.Is(err, influxdb.ErrDisabled) {
			log.Warn("InfluxDB unavailable, publish history disabled", "url", cfg.URL, "error", err)
		}
		return nil
	}

	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.URL,
		"org", cfg.Org,
		"bucket", cfg.Bucket,
	)
	return client
}
