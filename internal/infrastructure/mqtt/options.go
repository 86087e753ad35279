package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/mqtt-relay/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout bounds a single network connection attempt.
	// The caller's context usually imposes a tighter budget.
	defaultConnectTimeout = 30 * time.Second

	// defaultWriteTimeout bounds a blocked publish write.
	defaultWriteTimeout = 10 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// buildClientOptions creates paho MQTT options from relay config.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on TLS setting)
//   - Client ID, keepalive and clean session mode
//   - Authentication credentials (if provided)
//   - Last will message (if configured)
//   - Auto-reconnect after the first successful connection, capped backoff
//   - TLS configuration (if enabled)
//
// The initial attempt is never retried by the library: a failure there is
// reported to the caller.
func buildClientOptions(cfg config.MQTTConfig, password string, tlsConfig *tls.Config) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	// Broker URL
	scheme := "tcp"
	if cfg.TLS.Enabled {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))

	// Client identification
	opts.SetClientID(cfg.Broker.ClientID)
	opts.SetCleanSession(cfg.Broker.CleanSession)
	opts.SetKeepAlive(time.Duration(cfg.Broker.KeepAlive) * time.Second)

	// Authentication (if credentials provided)
	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(password)
	}

	configureWill(opts, cfg.Will)

	// Reconnect only once a connection has been established
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	if cfg.Reconnect.MaxDelay > 0 {
		opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)
	}

	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetWriteTimeout(defaultWriteTimeout)

	if tlsConfig != nil {
		opts.SetTLSConfig(tlsConfig)
	}

	return opts
}

// configureWill sets up the Last Will and Testament message.
//
// The will is published by the broker if the relay disconnects
// unexpectedly (crash, network failure, etc.). An empty topic disables it.
func configureWill(opts *pahomqtt.ClientOptions, will config.MessageConfig) {
	if !will.Enabled() {
		return
	}
	opts.SetWill(will.Topic, will.Payload, byte(will.QoS), will.Retain)
}

// resolvePassword returns the configured password, reading it from the
// password file when no literal password is set. Trailing whitespace is
// removed from file contents.
func resolvePassword(auth config.MQTTAuthConfig) (string, error) {
	if auth.Password != "" || auth.PasswordFile == "" {
		return auth.Password, nil
	}
	data, err := os.ReadFile(auth.PasswordFile)
	if err != nil {
		return "", fmt.Errorf("%w: cannot read password file: %w", config.ErrInvalidConfig, err)
	}
	return strings.TrimRight(string(data), " \t\r\n"), nil
}

// newTLSConfig builds the transport security configuration.
//
// Parameters:
//   - cfg: TLS settings; nil is returned when TLS is disabled
//
// CA certificates replace the system pool when given. A client certificate
// is loaded when both certfile and keyfile are set. Insecure disables
// server certificate verification.
func newTLSConfig(cfg config.MQTTTLSConfig) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	tlsConfig := &tls.Config{
		MinVersion: tlsMinVersion,
		// #nosec G402 -- opt-in via --tls-insecure for self-signed lab brokers
		InsecureSkipVerify: cfg.Insecure,
	}

	if cfg.CACerts != "" {
		caCert, err := os.ReadFile(cfg.CACerts)
		if err != nil {
			return nil, fmt.Errorf("%w: reading CA certificates: %w", config.ErrInvalidConfig, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("%w: failed to parse CA certificates in %s", config.ErrInvalidConfig, cfg.CACerts)
		}
		tlsConfig.RootCAs = pool
	}

	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("%w: loading client certificate: %w", config.ErrInvalidConfig, err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}
