package main

import (
	"github.com/spf13/pflag"

	"github.com/nerrad567/mqtt-relay/internal/infrastructure/config"
)

// flagValues holds parsed command-line flags. Values are copied into the
// configuration only for flags that were set explicitly, so the config file
// and environment keep their effect otherwise.
type flagValues struct {
	configPath string
	debug      bool
	logLevel   string
	logFormat  string
	logFile    string
	pidFile    string

	host              string
	port              int
	connectTimeout    int
	maxReconnectDelay int
	username          string
	password          string
	passwordFile      string
	clientID          string
	noCleanSession    bool
	keepAlive         int

	topic              string
	payloadFileMissing string
	qos                int
	retain             bool
	refreshInterval    int

	tls         bool
	tlsInsecure bool
	caCerts     string
	certFile    string
	keyFile     string

	birthTopic   string
	birthPayload string
	birthQoS     int
	birthRetain  bool
	willTopic    string
	willPayload  string
	willQoS      int
	willRetain   bool

	triggerDelay int
	restartDelay int

	statusListen string
}

// registerFlags defines every command-line flag on fs.
func registerFlags(fs *pflag.FlagSet, f *flagValues) {
	d := config.Default()

	fs.StringVar(&f.configPath, "config", "", "YAML configuration file (env MQTTRELAY_CONFIG)")
	fs.BoolVarP(&f.debug, "debug", "d", false, "enable debug logging, including the MQTT library")
	fs.StringVar(&f.logLevel, "log-level", d.Logging.Level, "log level: debug, info, warn, error")
	fs.StringVar(&f.logFormat, "log-format", d.Logging.Format, "log format: json or text")
	fs.StringVar(&f.logFile, "logfile", "", "write logs to a rotating file instead of stdout")
	fs.StringVar(&f.pidFile, "pidfile", "", "write the process id to this file and lock it")

	// Broker connection
	fs.StringVarP(&f.host, "host", "H", d.MQTT.Broker.Host, "MQTT broker host")
	fs.IntVarP(&f.port, "port", "P", 0, "MQTT broker port (default 1883, 8883 with --tls)")
	fs.IntVar(&f.connectTimeout, "connect-timeout", d.Relay.ConnectTimeout, "seconds to wait for the first broker connection")
	fs.IntVar(&f.maxReconnectDelay, "max-reconnect-delay", d.MQTT.Reconnect.MaxDelay, "maximum seconds between reconnect attempts")
	fs.StringVarP(&f.username, "username", "u", "", "MQTT username")
	fs.StringVarP(&f.password, "password", "p", "", "MQTT password")
	fs.StringVar(&f.passwordFile, "password-file", "", "read the MQTT password from this file")
	fs.StringVarP(&f.clientID, "client-id", "c", "", "MQTT client id (default random)")
	fs.BoolVarP(&f.noCleanSession, "no-clean-session", "C", false, "keep the broker session across reconnects")
	fs.IntVar(&f.keepAlive, "keepalive", d.MQTT.Broker.KeepAlive, "MQTT keepalive in seconds")

	// Publishing
	fs.StringVarP(&f.topic, "topic", "t", "", "MQTT topic to publish to (required)")
	fs.StringVar(&f.payloadFileMissing, "payload-file-missing", "", "payload published once when the file is missing")
	fs.IntVarP(&f.qos, "qos", "q", d.MQTT.QoS, "QoS for published messages (0, 1 or 2)")
	fs.BoolVarP(&f.retain, "retain", "R", false, "set the retain flag on published messages")
	fs.IntVar(&f.refreshInterval, "refresh-interval", d.Relay.RefreshInterval, "republish the file every N seconds")

	// TLS
	fs.BoolVar(&f.tls, "tls", false, "connect using TLS")
	fs.BoolVar(&f.tlsInsecure, "tls-insecure", false, "skip broker certificate verification")
	fs.StringVar(&f.caCerts, "ca-certs", "", "CA certificates file")
	fs.StringVar(&f.certFile, "certfile", "", "client certificate file")
	fs.StringVar(&f.keyFile, "keyfile", "", "client private key file")

	// Birth and will
	fs.StringVar(&f.birthTopic, "birth-topic", "", "topic for the message published on every connect")
	fs.StringVar(&f.birthPayload, "birth-payload", "", "birth message payload")
	fs.IntVar(&f.birthQoS, "birth-qos", 0, "birth message QoS")
	fs.BoolVar(&f.birthRetain, "birth-retain", false, "retain the birth message")
	fs.StringVar(&f.willTopic, "will-topic", "", "last will topic")
	fs.StringVar(&f.willPayload, "will-payload", "", "last will payload")
	fs.IntVar(&f.willQoS, "will-qos", 0, "last will QoS")
	fs.BoolVar(&f.willRetain, "will-retain", false, "retain the last will message")

	// Watcher
	fs.IntVar(&f.triggerDelay, "inotify-trigger-delay", d.Watcher.TriggerDelay, "seconds to collect file events before publishing")
	fs.IntVar(&f.restartDelay, "inotify-restart-delay", d.Watcher.RestartDelay, "seconds to wait before re-creating the file watch")

	// Status endpoint
	fs.StringVar(&f.statusListen, "status-listen", "", "serve /healthz and /status on this address")
}

// applyFlags copies explicitly set flags into cfg.
func applyFlags(fs *pflag.FlagSet, f *flagValues, cfg *config.Config) {
	set := fs.Changed

	if set("debug") && f.debug {
		cfg.Logging.Level = "debug"
	}
	if set("log-level") {
		cfg.Logging.Level = f.logLevel
	}
	if set("log-format") {
		cfg.Logging.Format = f.logFormat
	}
	if set("logfile") {
		cfg.Logging.Output = "file"
		cfg.Logging.File.Path = f.logFile
	}
	if set("pidfile") {
		cfg.PIDFile = f.pidFile
	}

	if set("host") {
		cfg.MQTT.Broker.Host = f.host
	}
	if set("port") {
		cfg.MQTT.Broker.Port = f.port
	}
	if set("connect-timeout") {
		cfg.Relay.ConnectTimeout = f.connectTimeout
	}
	if set("max-reconnect-delay") {
		cfg.MQTT.Reconnect.MaxDelay = f.maxReconnectDelay
	}
	if set("username") {
		cfg.MQTT.Auth.Username = f.username
	}
	if set("password") {
		cfg.MQTT.Auth.Password = f.password
	}
	if set("password-file") {
		cfg.MQTT.Auth.PasswordFile = f.passwordFile
	}
	if set("client-id") {
		cfg.MQTT.Broker.ClientID = f.clientID
	}
	if set("no-clean-session") {
		cfg.MQTT.Broker.CleanSession = !f.noCleanSession
	}
	if set("keepalive") {
		cfg.MQTT.Broker.KeepAlive = f.keepAlive
	}

	if set("topic") {
		cfg.MQTT.Topic = f.topic
	}
	if set("payload-file-missing") {
		cfg.Relay.PayloadFileMissing = f.payloadFileMissing
	}
	if set("qos") {
		cfg.MQTT.QoS = f.qos
	}
	if set("retain") {
		cfg.MQTT.Retain = f.retain
	}
	if set("refresh-interval") {
		cfg.Relay.RefreshInterval = f.refreshInterval
	}

	if set("tls") {
		cfg.MQTT.TLS.Enabled = f.tls
	}
	if set("tls-insecure") {
		cfg.MQTT.TLS.Insecure = f.tlsInsecure
	}
	if set("ca-certs") {
		cfg.MQTT.TLS.CACerts = f.caCerts
	}
	if set("certfile") {
		cfg.MQTT.TLS.CertFile = f.certFile
	}
	if set("keyfile") {
		cfg.MQTT.TLS.KeyFile = f.keyFile
	}

	applyMessageFlags(set, "birth", &cfg.MQTT.Birth, f.birthTopic, f.birthPayload, f.birthQoS, f.birthRetain)
	applyMessageFlags(set, "will", &cfg.MQTT.Will, f.willTopic, f.willPayload, f.willQoS, f.willRetain)

	if set("inotify-trigger-delay") {
		cfg.Watcher.TriggerDelay = f.triggerDelay
	}
	if set("inotify-restart-delay") {
		cfg.Watcher.RestartDelay = f.restartDelay
	}

	if set("status-listen") {
		cfg.Status.Enabled = f.statusListen != ""
		cfg.Status.Listen = f.statusListen
	}
}

// applyMessageFlags copies the --<prefix>-* flags into a birth or will message.
func applyMessageFlags(set func(string) bool, prefix string, msg *config.MessageConfig, topic, payload string, qos int, retain bool) {
	if set(prefix + "-topic") {
		msg.Topic = topic
	}
	if set(prefix + "-payload") {
		msg.Payload = payload
	}
	if set(prefix + "-qos") {
		msg.QoS = qos
	}
	if set(prefix + "-retain") {
		msg.Retain = retain
	}
}
