package util

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
)

// Mock MQTT client for testing
type MockMQTTClient struct {
	publishErr     error
	publishCalls   []PublishCall
	subscribeCalls []SubscribeCall
	connected      bool
	hang           bool
	mu             sync.RWMutex
}

type PublishCall struct {
	Payload  interface{}
	Topic    string
	QoS      byte
	Retained bool
}

type SubscribeCall struct {
	Handler MQTT.MessageHandler
	Topic   string
	QoS     byte
}

func (m *MockMQTTClient) IsConnected() bool      { return m.connected }
func (m *MockMQTTClient) IsConnectionOpen() bool { return m.connected }
func (m *MockMQTTClient) Connect() MQTT.Token {
	m.connected = true
	return &MockToken{}
}
func (m *MockMQTTClient) Disconnect(quiesce uint) { m.connected = false }

func (m *MockMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) MQTT.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishCalls = append(m.publishCalls, PublishCall{
		Topic:    topic,
		QoS:      qos,
		Retained: retained,
		Payload:  payload,
	})
	return &MockToken{err: m.publishErr, hang: m.hang}
}

func (m *MockMQTTClient) Subscribe(topic string, qos byte, callback MQTT.MessageHandler) MQTT.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribeCalls = append(m.subscribeCalls, SubscribeCall{
		Topic:   topic,
		QoS:     qos,
		Handler: callback,
	})
	return &MockToken{}
}

func (m *MockMQTTClient) SubscribeMultiple(filters map[string]byte, callback MQTT.MessageHandler) MQTT.Token {
	return &MockToken{}
}
func (m *MockMQTTClient) Unsubscribe(topics ...string) MQTT.Token             { return &MockToken{} }
func (m *MockMQTTClient) AddRoute(topic string, callback MQTT.MessageHandler) {}
func (m *MockMQTTClient) OptionsReader() MQTT.ClientOptionsReader             { return MQTT.ClientOptionsReader{} }

// Mock MQTT token; a hanging token never completes
type MockToken struct {
	err  error
	hang bool
}

func (m *MockToken) Wait() bool                     { return !m.hang }
func (m *MockToken) WaitTimeout(time.Duration) bool { return !m.hang }
func (m *MockToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if !m.hang {
		close(ch)
	}
	return ch
}
func (m *MockToken) Error() error { return m.err }

// Mock MQTT message
type MockMessage struct {
	topic   string
	payload []byte
}

func (m *MockMessage) Duplicate() bool   { return false }
func (m *MockMessage) Qos() byte         { return 0 }
func (m *MockMessage) Retained() bool    { return false }
func (m *MockMessage) Topic() string     { return m.topic }
func (m *MockMessage) MessageID() uint16 { return 0 }
func (m *MockMessage) Payload() []byte   { return m.payload }
func (m *MockMessage) Ack()              {}

func TestRegisterMQTTConnectHook(t *testing.T) {
	connectHandlers = make(map[string]func(MQTT.Client))

	called := false
	RegisterMQTTConnectHook("test_handler", func(client MQTT.Client) {
		called = true
	})

	if len(connectHandlers) != 1 {
		t.Errorf("Expected 1 connect handler, got %d", len(connectHandlers))
	}

	connectHandlers["test_handler"](&MockMQTTClient{})
	if !called {
		t.Error("Connect handler should have been called")
	}

	RegisterMQTTConnectHook("test_handler", nil)
	if len(connectHandlers) != 0 {
		t.Errorf("Expected 0 connect handlers after removal, got %d", len(connectHandlers))
	}
}

func TestRegisterMQTTSubscription(t *testing.T) {
	subscriptions = make(map[string]MQTT.MessageHandler)

	RegisterMQTTSubscription("torchsync/host/tracker", func(client MQTT.Client, message MQTT.Message) {})

	if len(subscriptions) != 1 {
		t.Errorf("Expected 1 subscription, got %d", len(subscriptions))
	}
	if subscriptions["torchsync/host/tracker"] == nil {
		t.Error("Subscription handler should not be nil")
	}

	RegisterMQTTSubscription("torchsync/host/tracker", nil)
	if len(subscriptions) != 0 {
		t.Errorf("Expected 0 subscriptions after removal, got %d", len(subscriptions))
	}
}

func TestSubscribe(t *testing.T) {
	mockClient := &MockMQTTClient{}

	subscriptions = make(map[string]MQTT.MessageHandler)
	handler := func(client MQTT.Client, message MQTT.Message) {}
	model := Model{}
	for _, topic := range model.SubscribeTopics() {
		subscriptions[topic] = handler
	}

	subscribe(mockClient)

	if len(mockClient.subscribeCalls) != 6 {
		t.Errorf("Expected 6 subscribe calls, got %d", len(mockClient.subscribeCalls))
	}
	for _, call := range mockClient.subscribeCalls {
		if call.QoS != 1 {
			t.Errorf("subscription to %s used QoS %d, expected 1", call.Topic, call.QoS)
		}
	}
}

func TestReceiverFunction(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("receiver function should not panic: %v", r)
		}
	}()

	receiver(&MockMQTTClient{}, &MockMessage{topic: "unknown/topic", payload: []byte("x")})
}

func TestConnectHandler(t *testing.T) {
	mockClient := &MockMQTTClient{}
	subscriptions = make(map[string]MQTT.MessageHandler)
	connectHandlers = make(map[string]func(MQTT.Client))
	onlineTopic = "test/online"
	defer func() { onlineTopic = DEFAULT_PREFIX + "/online" }()

	handlerCalled := false
	connectHandlers["test"] = func(client MQTT.Client) {
		handlerCalled = true
	}

	connectHandler(mockClient)

	if len(mockClient.publishCalls) < 1 {
		t.Fatal("Connect handler should publish online message")
	}
	call := mockClient.publishCalls[0]
	if call.Topic != "test/online" || call.Payload != "online" {
		t.Errorf("Expected online message to test/online, got %v to %s", call.Payload, call.Topic)
	}
	if !handlerCalled {
		t.Error("Custom connect handler should have been called")
	}
}

func TestPublishWait(t *testing.T) {
	Config.Set("mqtt_timeout_ms", 50)
	defer Config.Set("mqtt_timeout_ms", 5000)

	tests := []struct {
		name    string
		client  *MockMQTTClient
		wantErr error
	}{
		{"Acknowledged", &MockMQTTClient{}, nil},
		{"Broker error", &MockMQTTClient{publishErr: errors.New("not authorized")}, nil},
		{"Timed out", &MockMQTTClient{hang: true}, context.DeadlineExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := PublishWait(tt.client, "torchsync/activity", true, "true")
			switch {
			case tt.client.publishErr != nil:
				if !errors.Is(err, tt.client.publishErr) {
					t.Errorf("PublishWait error = %v, expected %v", err, tt.client.publishErr)
				}
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("PublishWait error = %v, expected %v", err, tt.wantErr)
				}
			default:
				if err != nil {
					t.Errorf("PublishWait returned error: %v", err)
				}
			}
			if len(tt.client.publishCalls) != 1 || !tt.client.publishCalls[0].Retained {
				t.Errorf("expected one retained publish, got %+v", tt.client.publishCalls)
			}
		})
	}
}

func TestPublishContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := PublishContext(ctx, &MockMQTTClient{hang: true}, "x", false, "y")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("PublishContext error = %v, expected context.Canceled", err)
	}
}

func TestPublishContext_NoClient(t *testing.T) {
	if err := PublishContext(context.Background(), nil, "x", false, "y"); err == nil {
		t.Error("PublishContext with nil client should fail")
	}
}
