package main

import (
	"encoding/json"
	"errors"
	"fmt"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/elijahnyp/torch_sync/engine"
	"github.com/elijahnyp/torch_sync/metrics"
	"github.com/elijahnyp/torch_sync/state"
	. "github.com/elijahnyp/torch_sync/util"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// SyncItem is one host event as received from the broker.
type SyncItem struct {
	Data  []byte
	Topic string
	Type  int
}

// every host payload carries whether the sender is the game master
type hostEnvelope struct {
	GM bool `json:"gm"`
}

type trackerPayload struct {
	Sources []json.RawMessage `json:"sources"`
}

type sceneReadyPayload struct {
	Scene  string                `json:"scene"`
	Lights []state.LightDocument `json:"lights"`
}

type lightUpdatedPayload struct {
	Changes state.LightChanges `json:"changes"`
	ID      string             `json:"id"`
}

type lightCreatedPayload struct {
	Document state.LightDocument `json:"document"`
}

type lightRefPayload struct {
	ID string `json:"id"`
}

// drop reasons
const (
	dropMalformed     = "malformed"
	dropNotGM         = "not_gm"
	dropSceneNotReady = "scene_not_ready"
	dropUnknownTopic  = "unknown_topic"
)

/* ***************************************
Message Router
*/

// SyncRouter turns host events into sync engine calls. It is driven from a
// single goroutine so the engine sees one event at a time.
type SyncRouter struct {
	engine  *engine.Engine
	tracker *TrackerSnapshot
	scene   *SceneStore
	clock   clockwork.Clock
	log     zerolog.Logger
}

func NewSyncRouter(eng *engine.Engine, tracker *TrackerSnapshot, scene *SceneStore, clock clockwork.Clock, log zerolog.Logger) *SyncRouter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SyncRouter{engine: eng, tracker: tracker, scene: scene, clock: clock, log: log}
}

// Handle routes one event. Events from non-GM clients, and events other than
// scene ready that arrive before any scene is loaded, never reach the engine.
func (r *SyncRouter) Handle(item SyncItem) error {
	kind := TopicTypeName(item.Type)
	metrics.HostEvents.WithLabelValues(kind).Inc()

	var env hostEnvelope
	if err := json.Unmarshal(item.Data, &env); err != nil {
		return r.malformed(item, err)
	}
	if !env.GM {
		r.drop(item, dropNotGM)
		return nil
	}

	switch item.Type {
	case TRACKER:
		var p trackerPayload
		if err := json.Unmarshal(item.Data, &p); err != nil {
			return r.malformed(item, err)
		}
		r.tracker.Update(p.Sources, r.clock.Now())
		if !r.scene.Ready() {
			r.drop(item, dropSceneNotReady)
			return nil
		}
		r.engine.OnTrackerChanged()

	case SCENE_READY:
		var p sceneReadyPayload
		if err := json.Unmarshal(item.Data, &p); err != nil {
			return r.malformed(item, err)
		}
		r.scene.Load(p.Scene, p.Lights)
		r.log.Info().Str("scene", p.Scene).Int("lights", len(p.Lights)).Msg("scene ready")
		r.engine.OnSceneLoad()

	case LIGHT_UPDATED, LIGHT_CREATED, LIGHT_DELETED, LIGHT_CONFIGURED:
		if !r.scene.Ready() {
			r.drop(item, dropSceneNotReady)
			return nil
		}
		return r.handleLight(item)

	default:
		r.drop(item, dropUnknownTopic)
	}
	return nil
}

func (r *SyncRouter) handleLight(item SyncItem) error {
	switch item.Type {
	case LIGHT_UPDATED:
		var p lightUpdatedPayload
		if err := json.Unmarshal(item.Data, &p); err != nil {
			return r.malformed(item, err)
		}
		optedIn, changed := p.Changes.OptInChange()
		if _, ok := r.scene.ApplyChanges(p.ID, p.Changes); !ok && !changed {
			r.log.Debug().Str("light", p.ID).Msg("update for light outside the active scene")
			return nil
		}
		if !changed {
			return nil
		}
		return ignoreMissing(r.engine.OnEntityOptInChanged(p.ID, optedIn))

	case LIGHT_CREATED:
		var p lightCreatedPayload
		if err := json.Unmarshal(item.Data, &p); err != nil {
			return r.malformed(item, err)
		}
		if p.Document.ID == "" {
			return r.malformed(item, errors.New("light document has no id"))
		}
		light := state.LightFromDocument(p.Document)
		r.scene.Put(light)
		if !light.OptedIn {
			return nil
		}
		err := r.engine.OnEntityOptInChanged(light.ID, true)
		r.engine.OnSingleEntityConfigChange(light.ID)
		return err

	case LIGHT_DELETED:
		var p lightRefPayload
		if err := json.Unmarshal(item.Data, &p); err != nil {
			return r.malformed(item, err)
		}
		r.scene.Remove(p.ID)
		return r.engine.OnEntityRemoved(p.ID)

	case LIGHT_CONFIGURED:
		var p lightRefPayload
		if err := json.Unmarshal(item.Data, &p); err != nil {
			return r.malformed(item, err)
		}
		r.engine.OnSingleEntityConfigChange(p.ID)
	}
	return nil
}

// an unknown light has already been logged and counted by the engine
func ignoreMissing(err error) error {
	var missing *engine.MissingEntityError
	if errors.As(err, &missing) {
		return nil
	}
	return err
}

func (r *SyncRouter) drop(item SyncItem, reason string) {
	metrics.DroppedEvents.WithLabelValues(reason).Inc()
	r.log.Debug().Str("topic", item.Topic).Str("reason", reason).Msg("dropping host event")
}

func (r *SyncRouter) malformed(item SyncItem, err error) error {
	metrics.DroppedEvents.WithLabelValues(dropMalformed).Inc()
	return fmt.Errorf("decoding %s event: %w", TopicTypeName(item.Type), err)
}

/* ***************************************
Routines, dependencies, and Routine Init
*/

var sync_channel = make(chan SyncItem, 64)

func SyncManagerRoutine(router *SyncRouter, items <-chan SyncItem) {
	for item := range items {
		if err := router.Handle(item); err != nil {
			Logger.Warn().Err(err).Str("topic", item.Topic).Msg("host event not applied")
		}
	}
}

func subscribeSyncTopics() {
	for _, topic := range model.SubscribeTopics() {
		RegisterMQTTSubscription(topic, receiver)
	}
}

func receiver(client MQTT.Client, message MQTT.Message) {
	Logger.Debug().Msgf("Message Received on topic %s", message.Topic())
	item := SyncItem{
		Data:  message.Payload(),
		Topic: message.Topic(),
		Type:  model.FindTopicType(message.Topic()),
	}
	if item.Type < 0 {
		Logger.Debug().Msgf("topic %s not found in model. Fix subscription or prefix", message.Topic())
		return
	}
	Logger.Trace().Msgf("%s message received: queue len %v", TopicTypeName(item.Type), len(sync_channel))
	sync_channel <- item
}
