//go:build integration

package mqtt

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/mqtt-relay/internal/event"
	"github.com/nerrad567/mqtt-relay/internal/infrastructure/config"
)

// Integration tests against a real broker.
// These tests require a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func integrationConfig(clientID string) config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:         "127.0.0.1",
			Port:         1883,
			ClientID:     clientID,
			CleanSession: true,
			KeepAlive:    30,
		},
		Reconnect: config.MQTTReconnectConfig{MaxDelay: 5},
	}
}

// subscriber connects a plain paho client that collects messages on topic.
func subscriber(t *testing.T, topic string) <-chan pahomqtt.Message {
	t.Helper()
	opts := pahomqtt.NewClientOptions().
		AddBroker("tcp://127.0.0.1:1883").
		SetClientID("mqtt-relay-int-sub-" + filepath.Base(t.Name()))
	sub := pahomqtt.NewClient(opts)
	if token := sub.Connect(); !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		t.Fatalf("subscriber connect: %v", token.Error())
	}
	t.Cleanup(func() { sub.Disconnect(250) })

	msgs := make(chan pahomqtt.Message, 16)
	token := sub.Subscribe(topic, 1, func(_ pahomqtt.Client, m pahomqtt.Message) { msgs <- m })
	if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		t.Fatalf("subscribe: %v", token.Error())
	}
	return msgs
}

func connectClient(t *testing.T, cfg config.MQTTConfig, q *event.Queue) *Client {
	t.Helper()
	c, err := New(cfg, "gone", q, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	return c
}

func TestIntegration_ConnectPostsEventAndBirth(t *testing.T) {
	cfg := integrationConfig("mqtt-relay-int-birth")
	cfg.Birth = config.MessageConfig{Topic: "mqtt-relay/int/birth", Payload: "online", QoS: 1}
	msgs := subscriber(t, cfg.Birth.Topic)

	q := event.NewQueue()
	connectClient(t, cfg, q)

	if err := q.Wait(context.Background(), 5*time.Second); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	ev, ok := q.Pop()
	if !ok || ev.Kind != event.KindBrokerConnected || ev.ResultCode != 0 {
		t.Fatalf("event = %+v, %v; want BrokerConnected(0)", ev, ok)
	}

	select {
	case m := <-msgs:
		if string(m.Payload()) != "online" {
			t.Errorf("birth payload = %q, want online", m.Payload())
		}
	case <-time.After(5 * time.Second):
		t.Error("birth message not received")
	}
}

func TestIntegration_PublishFile(t *testing.T) {
	const topic = "mqtt-relay/int/file"
	msgs := subscriber(t, topic)

	q := event.NewQueue()
	c := connectClient(t, integrationConfig("mqtt-relay-int-file"), q)
	_ = q.Wait(context.Background(), 5*time.Second)

	path := filepath.Join(t.TempDir(), "value")
	if err := os.WriteFile(path, []byte("42\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if !c.PublishFile(path, topic, 1, false) {
		t.Fatal("PublishFile() = false, want true")
	}

	select {
	case m := <-msgs:
		if string(m.Payload()) != "42" {
			t.Errorf("payload = %q, want 42", m.Payload())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("message not received")
	}
}

func TestIntegration_ConnectInvalidBroker(t *testing.T) {
	cfg := integrationConfig("mqtt-relay-int-invalid")
	cfg.Broker.Port = 19999

	c, err := New(cfg, "", event.NewQueue(), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Connect(ctx); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}
