// Package mqtt provides the broker connection for the relay.
//
// This package manages:
//   - One connection to the broker with auto-reconnect after the first success
//   - Username/password (optionally from a file) and TLS client material
//   - Birth message on every connection, Last Will and Testament for crashes
//   - Reporting each connection result to the event queue
//   - Publishing a file's contents with missing-file fallback
//
// # Connection events
//
// Every successful connection, including each automatic reconnect, posts
// event.BrokerConnected(0) after the birth message is published. A broker
// refusal of the initial attempt posts BrokerConnected with the CONNACK code.
// Disconnects are logged and otherwise absorbed: the library reconnects and
// the next connection is reported as usual.
//
// # Missing files
//
// PublishFile publishes the configured fallback payload the first time the
// file is found missing and stays quiet while it remains missing. An empty
// fallback clears a retained topic.
//
// # Usage
//
//	client, err := mqtt.New(cfg.MQTT, cfg.Relay.PayloadFileMissing, queue, log)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	client.PublishFile(cfg.Relay.Path, cfg.MQTT.Topic, byte(cfg.MQTT.QoS), cfg.MQTT.Retain)
package mqtt
