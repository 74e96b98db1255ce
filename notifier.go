package main

import (
	"encoding/json"
	"errors"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/elijahnyp/torch_sync/engine"
	. "github.com/elijahnyp/torch_sync/util"
	"github.com/rs/zerolog"
)

// Notification is published for the host to show to the game master.
type Notification struct {
	Level    string `json:"level"`
	Message  string `json:"message"`
	EntityID string `json:"entity_id,omitempty"`
	Op       string `json:"op,omitempty"`
}

// HostNotifier forwards engine failures to the host's notification layer.
type HostNotifier struct {
	client func() MQTT.Client
	topics *Model
	log    zerolog.Logger
}

func NewHostNotifier(client func() MQTT.Client, topics *Model, log zerolog.Logger) *HostNotifier {
	return &HostNotifier{client: client, topics: topics, log: log}
}

func (n *HostNotifier) Notify(err error) {
	note := Notification{Level: "error", Message: err.Error()}
	var werr *engine.EntityWriteError
	if errors.As(err, &werr) {
		note.EntityID = werr.EntityID
		note.Op = werr.Op
	}
	payload, merr := json.Marshal(note)
	if merr != nil {
		n.log.Error().Err(merr).Msg("Error encoding notification")
		return
	}
	if perr := PublishWait(n.client(), n.topics.NotificationTopic(), false, payload); perr != nil {
		n.log.Warn().Err(perr).Str("notification", note.Message).Msg("unable to deliver notification")
	}
}
