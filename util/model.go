package util

import (
	"fmt"
	"strings"
)

const ( //host message types
	TRACKER          = iota
	SCENE_READY      = iota
	LIGHT_UPDATED    = iota
	LIGHT_CREATED    = iota
	LIGHT_DELETED    = iota
	LIGHT_CONFIGURED = iota
)

const DEFAULT_PREFIX = "torchsync"

// Model is the MQTT topic layout shared with the host bridge.
type Model struct {
	Prefix string `mapstructure:"prefix"`
}

func (m Model) prefix() string {
	p := strings.Trim(m.Prefix, "/")
	if p == "" {
		return DEFAULT_PREFIX
	}
	return p
}

func (m Model) topic(parts ...string) string {
	return m.prefix() + "/" + strings.Join(parts, "/")
}

// inbound, published by the host bridge
func (m Model) TrackerTopic() string         { return m.topic("host", "tracker") }
func (m Model) SceneReadyTopic() string      { return m.topic("host", "scene", "ready") }
func (m Model) LightUpdatedTopic() string    { return m.topic("host", "light", "updated") }
func (m Model) LightCreatedTopic() string    { return m.topic("host", "light", "created") }
func (m Model) LightDeletedTopic() string    { return m.topic("host", "light", "deleted") }
func (m Model) LightConfiguredTopic() string { return m.topic("host", "light", "configured") }

// outbound
func (m Model) LightSetTopic(id string) string { return m.topic("light", id, "set") }
func (m Model) MarkerTopic(id string) string   { return m.topic("light", id, "marker") }
func (m Model) ActivityTopic() string          { return m.topic("activity") }
func (m Model) NotificationTopic() string      { return m.topic("notifications") }
func (m Model) OnlineTopic() string            { return m.topic("online") }

func (m Model) FindTopicType(topic string) int {
	switch topic {
	case m.TrackerTopic():
		return TRACKER
	case m.SceneReadyTopic():
		return SCENE_READY
	case m.LightUpdatedTopic():
		return LIGHT_UPDATED
	case m.LightCreatedTopic():
		return LIGHT_CREATED
	case m.LightDeletedTopic():
		return LIGHT_DELETED
	case m.LightConfiguredTopic():
		return LIGHT_CONFIGURED
	}
	return -1
}

func TopicTypeName(t int) string {
	switch t {
	case TRACKER:
		return "tracker"
	case SCENE_READY:
		return "scene_ready"
	case LIGHT_UPDATED:
		return "light_updated"
	case LIGHT_CREATED:
		return "light_created"
	case LIGHT_DELETED:
		return "light_deleted"
	case LIGHT_CONFIGURED:
		return "light_configured"
	}
	return "unknown"
}

func (m Model) SubscribeTopics() []string {
	return []string{
		m.TrackerTopic(),
		m.SceneReadyTopic(),
		m.LightUpdatedTopic(),
		m.LightCreatedTopic(),
		m.LightDeletedTopic(),
		m.LightConfiguredTopic(),
	}
}

func (m *Model) BuildModel() error {
	err := Config.UnmarshalKey("model", m)
	if err != nil {
		Logger.Error().Msgf("error unmarshaling model: %v", err)
		return fmt.Errorf("error unmarshaling model: %w", err)
	}
	return nil
}
