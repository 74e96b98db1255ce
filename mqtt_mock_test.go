package main

import (
	"sync"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
)

// mockClient records publishes; topics in failTopics fail with the given error
type mockClient struct {
	failTopics map[string]error
	published  []publishCall
	mu         sync.Mutex
}

type publishCall struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

func newMockClient() *mockClient {
	return &mockClient{failTopics: make(map[string]error)}
}

func (m *mockClient) failOn(topic string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failTopics[topic] = err
}

func (m *mockClient) IsConnected() bool       { return true }
func (m *mockClient) IsConnectionOpen() bool  { return true }
func (m *mockClient) Connect() MQTT.Token     { return &mockToken{} }
func (m *mockClient) Disconnect(quiesce uint) {}

func (m *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) MQTT.Token {
	var data []byte
	switch p := payload.(type) {
	case []byte:
		data = p
	case string:
		data = []byte(p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, publishCall{Topic: topic, Payload: data, QoS: qos, Retained: retained})
	return &mockToken{err: m.failTopics[topic]}
}

func (m *mockClient) Subscribe(topic string, qos byte, callback MQTT.MessageHandler) MQTT.Token {
	return &mockToken{}
}
func (m *mockClient) SubscribeMultiple(filters map[string]byte, callback MQTT.MessageHandler) MQTT.Token {
	return &mockToken{}
}
func (m *mockClient) Unsubscribe(topics ...string) MQTT.Token             { return &mockToken{} }
func (m *mockClient) AddRoute(topic string, callback MQTT.MessageHandler) {}
func (m *mockClient) OptionsReader() MQTT.ClientOptionsReader             { return MQTT.ClientOptionsReader{} }

// publishes returns every publish made to topic, in order
func (m *mockClient) publishes(topic string) []publishCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []publishCall
	for _, p := range m.published {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

func (m *mockClient) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.published)
}

type mockToken struct {
	err error
}

func (t *mockToken) Wait() bool                     { return true }
func (t *mockToken) WaitTimeout(time.Duration) bool { return true }
func (t *mockToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *mockToken) Error() error { return t.err }

type mockMessage struct {
	topic   string
	payload []byte
}

func (m *mockMessage) Duplicate() bool   { return false }
func (m *mockMessage) Qos() byte         { return 1 }
func (m *mockMessage) Retained() bool    { return false }
func (m *mockMessage) Topic() string     { return m.topic }
func (m *mockMessage) MessageID() uint16 { return 0 }
func (m *mockMessage) Payload() []byte   { return m.payload }
func (m *mockMessage) Ack()              {}
