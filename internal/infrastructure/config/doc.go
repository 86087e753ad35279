// Package config handles loading and validating the relay configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Command-line flags are merged by the caller between Load and Finalize,
// so the precedence is defaults < file < environment < flags.
//
// Security Considerations:
//   - Broker passwords should come from MQTTRELAY_MQTT_PASSWORD or a password file
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("/etc/mqtt-relay/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Finalize(); err != nil {
//	    log.Fatal(err)
//	}
package config
