package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/elijahnyp/torch_sync/engine"
	"github.com/elijahnyp/torch_sync/state"
	. "github.com/elijahnyp/torch_sync/util"
)

type setHiddenPayload struct {
	Hidden bool `json:"hidden"`
}

// SceneStore mirrors the lights of the scene the host has active and turns
// visibility writes into light set commands.
type SceneStore struct {
	client  func() MQTT.Client
	topics  *Model
	lights  map[string]state.LightEntity
	sceneID string
	mu      sync.RWMutex
	ready   bool
}

func NewSceneStore(client func() MQTT.Client, topics *Model) *SceneStore {
	return &SceneStore{
		client: client,
		topics: topics,
		lights: make(map[string]state.LightEntity),
	}
}

// Load replaces the mirror with the lights of a freshly readied scene.
func (s *SceneStore) Load(sceneID string, docs []state.LightDocument) {
	lights := make(map[string]state.LightEntity, len(docs))
	for _, doc := range docs {
		if doc.ID == "" {
			continue
		}
		lights[doc.ID] = state.LightFromDocument(doc)
	}
	s.mu.Lock()
	s.sceneID = sceneID
	s.lights = lights
	s.ready = true
	s.mu.Unlock()
}

// Ready reports whether a scene has been loaded since startup.
func (s *SceneStore) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

func (s *SceneStore) SceneID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sceneID
}

// Lights returns the scene's lights ordered by id.
func (s *SceneStore) Lights() []state.LightEntity {
	s.mu.RLock()
	out := make([]state.LightEntity, 0, len(s.lights))
	for _, l := range s.lights {
		out = append(out, l)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *SceneStore) Light(id string) (state.LightEntity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lights[id]
	return l, ok
}

func (s *SceneStore) Put(light state.LightEntity) {
	s.mu.Lock()
	s.lights[light.ID] = light
	s.mu.Unlock()
}

// Remove drops a light and reports whether it was present.
func (s *SceneStore) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.lights[id]
	delete(s.lights, id)
	return ok
}

// ApplyChanges folds a host update delta into the mirrored light.
func (s *SceneStore) ApplyChanges(id string, changes state.LightChanges) (state.LightEntity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lights[id]
	if !ok {
		return state.LightEntity{}, false
	}
	l = changes.Apply(l)
	s.lights[id] = l
	return l, true
}

// SetHidden asks the host to change a light's visibility and waits for the
// broker to accept the command or ctx to end.
func (s *SceneStore) SetHidden(ctx context.Context, id string, hidden bool) error {
	if _, ok := s.Light(id); !ok {
		return &engine.MissingEntityError{EntityID: id}
	}
	payload, err := json.Marshal(setHiddenPayload{Hidden: hidden})
	if err != nil {
		return fmt.Errorf("encoding set command: %w", err)
	}
	if err := PublishContext(ctx, s.client(), s.topics.LightSetTopic(id), false, payload); err != nil {
		return err
	}

	s.mu.Lock()
	if l, ok := s.lights[id]; ok {
		l.Hidden = hidden
		s.lights[id] = l
	}
	s.mu.Unlock()
	return nil
}
