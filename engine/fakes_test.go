package engine

import (
	"context"
	"sort"
	"sync"

	"github.com/elijahnyp/torch_sync/state"
)

type fakeTracker struct {
	sources []state.MonitoredSource
}

func (t *fakeTracker) Sources() []state.MonitoredSource { return t.sources }

func (t *fakeTracker) set(counts ...int) {
	t.sources = nil
	for _, c := range counts {
		t.sources = append(t.sources, state.MonitoredSource{ActiveLightCount: c})
	}
}

type fakeScene struct {
	fail   map[string]error
	lights []state.LightEntity
	writes []string
	mu     sync.Mutex
}

func newFakeScene(lights ...state.LightEntity) *fakeScene {
	return &fakeScene{lights: lights, fail: map[string]error{}}
}

func (s *fakeScene) Lights() []state.LightEntity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]state.LightEntity, len(s.lights))
	copy(out, s.lights)
	return out
}

func (s *fakeScene) Light(id string) (state.LightEntity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.lights {
		if l.ID == id {
			return l, true
		}
	}
	return state.LightEntity{}, false
}

func (s *fakeScene) SetHidden(ctx context.Context, id string, hidden bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, id)
	if err := s.fail[id]; err != nil {
		return err
	}
	for i := range s.lights {
		if s.lights[i].ID == id {
			s.lights[i].Hidden = hidden
			return nil
		}
	}
	return &MissingEntityError{EntityID: id}
}

func (s *fakeScene) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

func (s *fakeScene) writesFor(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, w := range s.writes {
		if w == id {
			n++
		}
	}
	return n
}

func (s *fakeScene) hidden(id string) bool {
	l, _ := s.Light(id)
	return l.Hidden
}

type fakeMarkers struct {
	fail     map[string]error
	attached map[string]bool
	attaches int
	detaches int
}

func newFakeMarkers(ids ...string) *fakeMarkers {
	m := &fakeMarkers{attached: map[string]bool{}, fail: map[string]error{}}
	for _, id := range ids {
		m.attached[id] = true
	}
	return m
}

func (m *fakeMarkers) Attach(id string) error {
	m.attaches++
	if err := m.fail[id]; err != nil {
		return err
	}
	m.attached[id] = true
	return nil
}

func (m *fakeMarkers) Detach(id string) error {
	m.detaches++
	if err := m.fail[id]; err != nil {
		return err
	}
	delete(m.attached, id)
	return nil
}

func (m *fakeMarkers) Has(id string) bool { return m.attached[id] }

func (m *fakeMarkers) Attached() []string {
	ids := make([]string, 0, len(m.attached))
	for id := range m.attached {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type recordingNotifier struct {
	errs []error
	mu   sync.Mutex
}

func (n *recordingNotifier) Notify(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errs = append(n.errs, err)
}

func (n *recordingNotifier) all() []error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]error(nil), n.errs...)
}
