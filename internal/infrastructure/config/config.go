package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when the configuration fails validation.
// Callers use errors.Is() to map it to the configuration exit status.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Default ports for the MQTT broker.
const (
	DefaultPort    = 1883
	DefaultTLSPort = 8883
)

// Config is the root configuration structure for the relay.
// All configuration is loaded from YAML and can be overridden by environment
// variables and command-line flags.
type Config struct {
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Relay     RelayConfig     `yaml:"relay"`
	Watcher   WatcherConfig   `yaml:"watcher"`
	Logging   LoggingConfig   `yaml:"logging"`
	Status    StatusConfig    `yaml:"status"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	PIDFile   string          `yaml:"pidfile"`
}

// MQTTConfig contains MQTT broker connection and publish settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	TLS       MQTTTLSConfig       `yaml:"tls"`
	Topic     string              `yaml:"topic"`
	QoS       int                 `yaml:"qos"`
	Retain    bool                `yaml:"retain"`
	Birth     MessageConfig       `yaml:"birth"`
	Will      MessageConfig       `yaml:"will"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	ClientID     string `yaml:"client_id"`
	CleanSession bool   `yaml:"clean_session"`
	// KeepAlive is the keepalive interval in seconds.
	KeepAlive int `yaml:"keepalive"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
// Password takes precedence over PasswordFile when both are set.
type MQTTAuthConfig struct {
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	PasswordFile string `yaml:"password_file"`
}

// MQTTTLSConfig contains transport security settings.
type MQTTTLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Insecure bool   `yaml:"insecure"`
	CACerts  string `yaml:"ca_certs"`
	CertFile string `yaml:"certfile"`
	KeyFile  string `yaml:"keyfile"`
}

// MessageConfig describes a birth or will message. An empty Topic disables it.
type MessageConfig struct {
	Topic   string `yaml:"topic"`
	Payload string `yaml:"payload"`
	QoS     int    `yaml:"qos"`
	Retain  bool   `yaml:"retain"`
}

// Enabled reports whether the message has a topic configured.
func (m MessageConfig) Enabled() bool {
	return m.Topic != ""
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	// MaxDelay caps the automatic reconnect backoff, in seconds.
	// 0 leaves the client library default in place.
	MaxDelay int `yaml:"max_delay"`
}

// RelayConfig contains the watched file and the relay loop timing.
type RelayConfig struct {
	Path string `yaml:"path"`
	// PayloadFileMissing is published once when the file disappears.
	// Empty clears a retained topic on the broker.
	PayloadFileMissing string `yaml:"payload_file_missing"`
	// ConnectTimeout is the initial connection budget in seconds.
	ConnectTimeout int `yaml:"connect_timeout"`
	// RefreshInterval is the republish period in seconds.
	RefreshInterval int `yaml:"refresh_interval"`
}

// WatcherConfig contains file watcher delays, in seconds.
type WatcherConfig struct {
	TriggerDelay int `yaml:"trigger_delay"`
	RestartDelay int `yaml:"restart_delay"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// StatusConfig contains the HTTP status endpoint settings.
type StatusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// InfluxDBConfig contains InfluxDB publish-history settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// TelemetryConfig contains OpenTelemetry metrics export settings.
// An empty MetricsURL keeps the no-op meter provider.
type TelemetryConfig struct {
	MetricsURL     string `yaml:"metrics_url"`
	ExportInterval int    `yaml:"export_interval"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults), skipped when path is empty
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: MQTTRELAY_SECTION_KEY
// For example: MQTTRELAY_MQTT_HOST, MQTTRELAY_RELAY_PATH
//
// Load does not validate: command-line flags are applied afterwards and the
// caller runs Finalize once everything is merged.
//
// Parameters:
//   - path: Path to the YAML configuration file, or "" for defaults only
//
// Returns:
//   - *Config: Loaded configuration
//   - error: If the file cannot be read or parsed
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: reading config file: %w", ErrInvalidConfig, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parsing config file: %w", ErrInvalidConfig, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// Default returns a Config with the relay's defaults.
func Default() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:         "localhost",
				CleanSession: true,
				KeepAlive:    65,
			},
			QoS: 0,
		},
		Relay: RelayConfig{
			ConnectTimeout:  30,
			RefreshInterval: 60,
		},
		Watcher: WatcherConfig{
			TriggerDelay: 1,
			RestartDelay: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			File: FileLoggingConfig{
				MaxSize:    10,
				MaxBackups: 3,
				MaxAge:     28,
			},
		},
		Status: StatusConfig{
			Listen: "127.0.0.1:9102",
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Telemetry: TelemetryConfig{
			ExportInterval: 30,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: MQTTRELAY_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// MQTT
	if v := os.Getenv("MQTTRELAY_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("MQTTRELAY_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("MQTTRELAY_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("MQTTRELAY_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("MQTTRELAY_MQTT_TOPIC"); v != "" {
		cfg.MQTT.Topic = v
	}

	// Relay
	if v := os.Getenv("MQTTRELAY_RELAY_PATH"); v != "" {
		cfg.Relay.Path = v
	}

	// InfluxDB
	if v := os.Getenv("MQTTRELAY_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Telemetry
	if v := os.Getenv("MQTTRELAY_OTEL_METRICS_URL"); v != "" {
		cfg.Telemetry.MetricsURL = v
	}
}

// Finalize fills derived values and validates the merged configuration.
//
// It performs:
//  1. Port selection (8883 with TLS, 1883 otherwise) when no port was given
//  2. Client ID generation when none was given
//  3. Absolute path resolution for the watched file
//  4. Validation of every section
//
// Returns:
//   - error: Wrapping ErrInvalidConfig when validation fails
func (c *Config) Finalize() error {
	if c.MQTT.Broker.Port == 0 {
		c.MQTT.Broker.Port = DefaultPort
		if c.MQTT.TLS.Enabled {
			c.MQTT.Broker.Port = DefaultTLSPort
		}
	}

	if c.MQTT.Broker.ClientID == "" {
		c.MQTT.Broker.ClientID = "mqtt-relay-" + uuid.NewString()
	}

	if c.Relay.Path != "" {
		abs, err := filepath.Abs(c.Relay.Path)
		if err != nil {
			return fmt.Errorf("%w: resolving relay.path: %w", ErrInvalidConfig, err)
		}
		c.Relay.Path = abs
	}

	return c.Validate()
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// MQTT validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.Broker.KeepAlive <= 0 {
		errs = append(errs, "mqtt.broker.keepalive must be positive")
	}
	if c.MQTT.Topic == "" {
		errs = append(errs, "mqtt.topic is required")
	} else if strings.ContainsAny(c.MQTT.Topic, "+#") {
		errs = append(errs, "mqtt.topic must not contain wildcards")
	}
	if !validQoS(c.MQTT.QoS) {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if !validQoS(c.MQTT.Birth.QoS) {
		errs = append(errs, "mqtt.birth.qos must be 0, 1, or 2")
	}
	if !validQoS(c.MQTT.Will.QoS) {
		errs = append(errs, "mqtt.will.qos must be 0, 1, or 2")
	}
	if c.MQTT.Reconnect.MaxDelay < 0 {
		errs = append(errs, "mqtt.reconnect.max_delay must not be negative")
	}
	if (c.MQTT.TLS.CertFile == "") != (c.MQTT.TLS.KeyFile == "") {
		errs = append(errs, "mqtt.tls.certfile and mqtt.tls.keyfile must be set together")
	}
	for name, path := range map[string]string{
		"mqtt.tls.ca_certs":       c.MQTT.TLS.CACerts,
		"mqtt.tls.certfile":       c.MQTT.TLS.CertFile,
		"mqtt.tls.keyfile":        c.MQTT.TLS.KeyFile,
		"mqtt.auth.password_file": c.MQTT.Auth.PasswordFile,
	} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
		}
	}

	// Relay validation
	if c.Relay.Path == "" {
		errs = append(errs, "relay.path is required")
	}
	if c.Relay.ConnectTimeout <= 0 {
		errs = append(errs, "relay.connect_timeout must be positive")
	}
	if c.Relay.RefreshInterval <= 0 {
		errs = append(errs, "relay.refresh_interval must be positive")
	}

	// Watcher validation
	if c.Watcher.TriggerDelay < 0 {
		errs = append(errs, "watcher.trigger_delay must not be negative")
	}
	if c.Watcher.RestartDelay <= 0 {
		errs = append(errs, "watcher.restart_delay must be positive")
	}

	// Logging validation
	if strings.ToLower(c.Logging.Output) == "file" && c.Logging.File.Path == "" {
		errs = append(errs, "logging.file.path is required when logging.output is file")
	}

	// Optional integrations
	if c.Status.Enabled && c.Status.Listen == "" {
		errs = append(errs, "status.listen is required when status is enabled")
	}
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}

	return nil
}

func validQoS(qos int) bool {
	return qos >= 0 && qos <= 2
}

// GetConnectTimeout returns the initial connection budget as a Duration.
func (c *Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.Relay.ConnectTimeout) * time.Second
}

// GetRefreshInterval returns the republish period as a Duration.
func (c *Config) GetRefreshInterval() time.Duration {
	return time.Duration(c.Relay.RefreshInterval) * time.Second
}

// GetTriggerDelay returns the watcher debounce delay as a Duration.
func (c *Config) GetTriggerDelay() time.Duration {
	return time.Duration(c.Watcher.TriggerDelay) * time.Second
}

// GetRestartDelay returns the watcher restart delay as a Duration.
func (c *Config) GetRestartDelay() time.Duration {
	return time.Duration(c.Watcher.RestartDelay) * time.Second
}
