package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/uts-core/internal/infrastructure/config"
	"github.com/nerrad567/uts-core/internal/lifecycle"
	"github.com/nerrad567/uts-core/internal/location"
)

// testConfig returns a valid MQTT configuration. None of the tests in this
// file connect to a broker.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "uts-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// =============================================================================
// Option Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "observer", Password: "secret"}

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want [tcp://127.0.0.1:1883]", opts.Servers)
	}
	if opts.ClientID != "uts-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "observer" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if !opts.AutoReconnect || !opts.CleanSession {
		t.Error("AutoReconnect and CleanSession should be enabled")
	}
	if opts.MaxReconnectInterval != 5*time.Second {
		t.Errorf("MaxReconnectInterval = %v, want 5s", opts.MaxReconnectInterval)
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg)

	if opts.Servers[0].String() != "ssl://127.0.0.1:8883" {
		t.Errorf("broker = %s, want ssl://127.0.0.1:8883", opts.Servers[0])
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Errorf("TLSConfig = %+v, want MinVersion TLS 1.2", opts.TLSConfig)
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := pahomqtt.NewClientOptions()
	configureLWT(opts, "uts-01")

	if !opts.WillEnabled || !opts.WillRetained || opts.WillQos != 1 {
		t.Errorf("will enabled=%v retained=%v qos=%d", opts.WillEnabled, opts.WillRetained, opts.WillQos)
	}
	if opts.WillTopic != "uts/system/status" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}

	var payload map[string]string
	if err := json.Unmarshal(opts.WillPayload, &payload); err != nil {
		t.Fatalf("will payload is not JSON: %v", err)
	}
	if payload["status"] != "offline" || payload["client_id"] != "uts-01" || payload["reason"] != "unexpected_disconnect" {
		t.Errorf("will payload = %v", payload)
	}
}

func TestStatusPayloads(t *testing.T) {
	for name, raw := range map[string]string{
		"online":  buildOnlinePayload("uts-01"),
		"offline": buildOfflinePayload("uts-01"),
	} {
		var payload map[string]string
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			t.Fatalf("%s payload is not JSON: %v", name, err)
		}
		if payload["status"] != name {
			t.Errorf("%s payload status = %q", name, payload["status"])
		}
	}
}

// =============================================================================
// Validation Tests (no broker)
// =============================================================================

func TestPublish_Validation(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{name: "empty topic", topic: "", qos: 1, wantErr: ErrInvalidTopic},
		{name: "qos too high", topic: "uts/x", qos: 3, wantErr: ErrInvalidQoS},
		{name: "payload too large", topic: "uts/x", payload: make([]byte, maxPayloadSize+1), wantErr: ErrPublishFailed},
		{name: "not connected", topic: "uts/x", payload: []byte("{}"), qos: 1, wantErr: ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribe_Validation(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}
	handler := func(string, []byte) error { return nil }

	if err := client.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(empty) error = %v", err)
	}
	if err := client.Subscribe("uts/#", 5, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe(qos 5) error = %v", err)
	}
	if err := client.Subscribe("uts/#", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) error = %v", err)
	}
	if err := client.Subscribe("uts/#", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe() while disconnected error = %v", err)
	}
	if err := client.Unsubscribe("uts/#"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe() while disconnected error = %v", err)
	}
	if len(client.subscriptions) != 0 {
		t.Error("failed Subscribe should not be tracked")
	}
}

func TestTrack(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}
	topic := Topics{}.AllComponentCommands()

	client.track(topic, &subscription{qos: 1, handler: func(string, []byte) error { return nil }})
	if sub, ok := client.subscriptions[topic]; !ok || sub.qos != 1 {
		t.Fatalf("subscriptions[%s] = %+v, %v", topic, sub, ok)
	}
	client.track(topic, nil)
	if _, ok := client.subscriptions[topic]; ok {
		t.Error("track(nil) should forget the topic")
	}
}

func TestHealthCheck_Disconnected(t *testing.T) {
	client := &Client{}

	if client.IsConnected() {
		t.Error("IsConnected() should be false for uninitialised client")
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck(cancelled) error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v", err)
	}
}

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func TestWrapHandler(t *testing.T) {
	logger := &recordingLogger{}
	client := &Client{}
	client.SetLogger(logger)

	var got string
	ok := client.wrapHandler(func(topic string, payload []byte) error {
		got = topic + "=" + string(payload)
		return nil
	})
	ok(nil, fakeMessage{topic: "uts/command/driver/Ticker/clock", payload: []byte("x")})
	if got != "uts/command/driver/Ticker/clock=x" {
		t.Errorf("handler received %q", got)
	}

	failing := client.wrapHandler(func(string, []byte) error { return errors.New("bad command") })
	failing(nil, fakeMessage{topic: "uts/x"})

	panicking := client.wrapHandler(func(string, []byte) error { panic("boom") })
	panicking(nil, fakeMessage{topic: "uts/x"})

	if len(logger.warns) != 1 || len(logger.errors) != 1 {
		t.Errorf("logged warns=%v errors=%v, want one of each", logger.warns, logger.errors)
	}
}

// =============================================================================
// Topic Tests
// =============================================================================

func TestTopics(t *testing.T) {
	loc := location.MustParse("instrument:SimCamera/cam1")

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"ComponentState", Topics{}.ComponentState(loc), "uts/component/instrument/SimCamera/cam1/state"},
		{"ComponentCommand", Topics{}.ComponentCommand(loc), "uts/command/instrument/SimCamera/cam1"},
		{"ComponentAck", Topics{}.ComponentAck(loc), "uts/ack/instrument/SimCamera/cam1"},
		{"SystemStatus", Topics{}.SystemStatus(), "uts/system/status"},
		{"AllComponentStates", Topics{}.AllComponentStates(), "uts/component/+/+/+/state"},
		{"AllComponentCommands", Topics{}.AllComponentCommands(), "uts/command/+/+/+"},
		{"AllTopics", Topics{}.AllTopics(), "uts/#"},
	}
	for _, tt := range tests {
		if tt.got != tt.expected {
			t.Errorf("%s() = %q, want %q", tt.name, tt.got, tt.expected)
		}
	}
}

func TestParseComponentTopic(t *testing.T) {
	loc := location.MustParse("driver:Ticker/clock")

	tests := []struct {
		topic       string
		wantChannel string
		wantErr     bool
	}{
		{topic: Topics{}.ComponentState(loc), wantChannel: ChannelComponent},
		{topic: Topics{}.ComponentCommand(loc), wantChannel: ChannelCommand},
		{topic: Topics{}.ComponentAck(loc), wantChannel: ChannelAck},
		{topic: "uts/command/driver/Ticker", wantErr: true},
		{topic: "uts/component/driver/Ticker/clock", wantErr: true},
		{topic: "other/command/driver/Ticker/clock", wantErr: true},
		{topic: "uts/command/telescope/Ticker/clock", wantErr: true},
		{topic: "uts/command/driver/Bad Class/clock", wantErr: true},
		{topic: "uts/status/driver/Ticker/clock", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			channel, got, err := ParseComponentTopic(tt.topic)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTopic) {
					t.Errorf("ParseComponentTopic() error = %v, want ErrInvalidTopic", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseComponentTopic() error = %v", err)
			}
			if channel != tt.wantChannel || got != loc {
				t.Errorf("ParseComponentTopic() = %s, %v", channel, got)
			}
		})
	}
}

// =============================================================================
// State Publisher Tests
// =============================================================================

type fakePublisher struct {
	mu       sync.Mutex
	messages map[string][]byte
	order    []string
	fail     bool
}

func (p *fakePublisher) PublishRetained(topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return fmt.Errorf("%w: broker gone", ErrNotConnected)
	}
	if p.messages == nil {
		p.messages = make(map[string][]byte)
	}
	p.messages[topic] = payload
	p.order = append(p.order, topic)
	return nil
}

func TestStatePublisher(t *testing.T) {
	pub := &fakePublisher{}
	states := NewStatePublisher(pub, nil)

	cam := location.MustParse("instrument:SimCamera/cam1")
	clock := location.MustParse("driver:Ticker/clock")
	now := time.Now()

	states.Record(lifecycle.Event{Time: now, Op: lifecycle.OpStart, Location: cam, State: lifecycle.StateRunning, TaskID: "t-1"})
	states.Record(lifecycle.Event{Time: now, Op: lifecycle.OpInit, Location: clock, State: lifecycle.StateFailed, Err: errors.New("no tick")})
	states.Record(lifecycle.Event{Time: now, Op: lifecycle.OpAdd, Location: clock, State: lifecycle.StateRegistered})
	states.Record(lifecycle.Event{Time: now, Op: lifecycle.OpRemove, Location: clock, State: lifecycle.StateRemoved})
	states.Close()
	states.Close()

	// Recorded after Close: ignored.
	states.Record(lifecycle.Event{Op: lifecycle.OpAdd, Location: cam})

	if len(pub.order) != 4 {
		t.Fatalf("published %d messages, want 4", len(pub.order))
	}

	var msg StateMessage
	if err := json.Unmarshal(pub.messages[Topics{}.ComponentState(cam)], &msg); err != nil {
		t.Fatalf("state payload: %v", err)
	}
	if msg.State != "running" || msg.TaskID != "t-1" || msg.Location != cam.String() {
		t.Errorf("camera state = %+v", msg)
	}

	if got := pub.messages[Topics{}.ComponentState(clock)]; len(got) != 0 {
		t.Errorf("removed component state = %q, want empty retained message", got)
	}
}

func TestStatePublisher_PublishFailureIsLogged(t *testing.T) {
	logger := &recordingLogger{}
	states := NewStatePublisher(&fakePublisher{fail: true}, logger)
	states.Record(lifecycle.Event{Op: lifecycle.OpAdd, Location: location.MustParse("driver:Ticker/clock")})
	states.Close()

	if len(logger.warns) != 1 || !strings.Contains(logger.warns[0], "failed to publish") {
		t.Errorf("warns = %v", logger.warns)
	}
}
