package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/elijahnyp/torch_sync/metrics"
	"github.com/elijahnyp/torch_sync/state"
)

// Tracker exposes the light source tracker's current monitored sources.
type Tracker interface {
	Sources() []state.MonitoredSource
}

// Scene is the active scene's set of lights.
type Scene interface {
	Lights() []state.LightEntity
	Light(id string) (state.LightEntity, bool)
	SetHidden(ctx context.Context, id string, hidden bool) error
}

// MarkerLayer attaches and detaches the per-light marker, keyed by light id.
type MarkerLayer interface {
	Attach(id string) error
	Detach(id string) error
	Has(id string) bool
	Attached() []string
}

// Notifier surfaces failures to the host's notification layer.
type Notifier interface {
	Notify(err error)
}

// Event kinds passed to Options.OnEvent.
const (
	EventActivity       = "activity"
	EventMarkerAttached = "marker_attached"
	EventMarkerDetached = "marker_detached"
	EventWriteFailed    = "write_failed"
)

// Event describes something the engine did, for dashboards.
type Event struct {
	Time     time.Time      `json:"time"`
	Kind     string         `json:"kind"`
	EntityID string         `json:"entity_id,omitempty"`
	Error    string         `json:"error,omitempty"`
	Activity state.Activity `json:"activity"`
}

type Options struct {
	Tracker  Tracker
	Scene    Scene
	Markers  MarkerLayer
	Notifier Notifier
	Logger   *zerolog.Logger
	Clock    clockwork.Clock

	// OnEvent may be called from dispatcher workers and must be safe for
	// concurrent use.
	OnEvent func(Event)

	Workers      int
	QueueDepth   int
	WriteTimeout time.Duration

	// UngatedConfigChange lets OnSingleEntityConfigChange write lights that
	// are not opted in.
	UngatedConfigChange bool
}

// Status is a point-in-time view of the engine's cached state.
type Status struct {
	LastTransition time.Time      `json:"last_transition"`
	Activity       state.Activity `json:"activity"`
	SceneLoads     int            `json:"scene_loads"`
}

type Engine struct {
	tracker  Tracker
	scene    Scene
	markers  MarkerLayer
	notifier Notifier
	log      zerolog.Logger
	clock    clockwork.Clock
	onEvent  func(Event)
	writes   *Dispatcher
	ungated  bool

	// guards the fields below so status readers on other goroutines see a
	// consistent snapshot; all writers run on the caller's goroutine
	mu             sync.RWMutex
	previous       state.Activity
	lastTransition time.Time
	sceneLoads     int
}

func New(opts Options) *Engine {
	e := &Engine{
		tracker:  opts.Tracker,
		scene:    opts.Scene,
		markers:  opts.Markers,
		notifier: opts.Notifier,
		clock:    opts.Clock,
		onEvent:  opts.OnEvent,
		ungated:  opts.UngatedConfigChange,
	}
	if opts.Logger != nil {
		e.log = *opts.Logger
	} else {
		e.log = zerolog.Nop()
	}
	if e.clock == nil {
		e.clock = clockwork.NewRealClock()
	}
	workers := opts.Workers
	if workers == 0 {
		workers = 4
	}
	depth := opts.QueueDepth
	if depth == 0 {
		depth = 64
	}
	e.writes = NewDispatcher(workers, depth, opts.WriteTimeout, e.writeVisibility, e.visibilityFailed)
	metrics.GlobalIllumination.Set(-1)
	return e
}

// OnTrackerChanged re-evaluates the tracker and, when the aggregate differs
// from the cached value, rewrites every opted-in light. It returns the number
// of writes issued.
func (e *Engine) OnTrackerChanged() int {
	current := e.evaluate()
	if current == e.Previous() {
		metrics.DebouncedEvents.Inc()
		e.log.Debug().Stringer("activity", current).Msg("global illumination unchanged")
		return 0
	}
	issued := e.applyVisibility(current)
	e.setPrevious(current)
	return issued
}

// OnSceneLoad starts a fresh scene context: the cached activity is dropped,
// every opted-in light is rewritten regardless of the previous value, and
// markers are brought back in line with the opt-in flags.
func (e *Engine) OnSceneLoad() int {
	e.mu.Lock()
	e.previous = state.ActivityUnset
	e.sceneLoads++
	e.mu.Unlock()
	metrics.SceneLoads.Inc()

	current := e.evaluate()
	issued := e.applyVisibility(current)
	e.setPrevious(current)
	e.reconcileMarkers()
	return issued
}

// OnEntityOptInChanged attaches or detaches the marker of one light to match
// its new opt-in flag. Visibility is left alone.
func (e *Engine) OnEntityOptInChanged(id string, optedIn bool) error {
	if _, ok := e.scene.Light(id); !ok {
		return e.missing(id, "opt-in change")
	}
	if optedIn {
		if e.markers.Has(id) {
			return nil
		}
		return e.attach(id)
	}
	if !e.markers.Has(id) {
		return nil
	}
	return e.detach(id)
}

// OnEntityRemoved drops the marker of a light that left the scene.
func (e *Engine) OnEntityRemoved(id string) error {
	if !e.markers.Has(id) {
		return nil
	}
	return e.detach(id)
}

// OnSingleEntityConfigChange applies the current aggregate to one light
// without touching the cached activity. Lights that are not opted in are
// skipped unless the engine was built with UngatedConfigChange.
func (e *Engine) OnSingleEntityConfigChange(id string) bool {
	light, ok := e.scene.Light(id)
	if !ok {
		_ = e.missing(id, "config change")
		return false
	}
	if !light.OptedIn && !e.ungated {
		e.log.Debug().Str("light", id).Msg("config change on light that is not opted in")
		return false
	}
	current := e.evaluate()
	return e.submit(light.ID, state.DesiredHidden(current.Bool()))
}

// Previous returns the cached aggregate activity.
func (e *Engine) Previous() state.Activity {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.previous
}

func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Status{
		Activity:       e.previous,
		LastTransition: e.lastTransition,
		SceneLoads:     e.sceneLoads,
	}
}

// Flush waits for every issued visibility write to complete.
func (e *Engine) Flush() {
	e.writes.Wait()
}

// Close waits for issued writes and stops the write workers.
func (e *Engine) Close() {
	e.writes.Close()
}

func (e *Engine) evaluate() state.Activity {
	return state.ActivityFromBool(Evaluate(e.tracker.Sources()))
}

func (e *Engine) applyVisibility(active state.Activity) int {
	hidden := state.DesiredHidden(active.Bool())
	issued := 0
	for _, light := range e.scene.Lights() {
		if !light.OptedIn {
			continue
		}
		if e.submit(light.ID, hidden) {
			issued++
		}
	}
	e.log.Info().Stringer("activity", active).Int("lights", issued).Msg("applying global illumination")
	return issued
}

func (e *Engine) setPrevious(current state.Activity) {
	now := e.clock.Now()
	e.mu.Lock()
	e.previous = current
	e.lastTransition = now
	e.mu.Unlock()

	metrics.ActivityTransitions.WithLabelValues(current.String()).Inc()
	if current.Bool() {
		metrics.GlobalIllumination.Set(1)
	} else {
		metrics.GlobalIllumination.Set(0)
	}
	e.emit(Event{Kind: EventActivity, Activity: current, Time: now})
}

func (e *Engine) reconcileMarkers() {
	wanted := make(map[string]bool)
	for _, light := range e.scene.Lights() {
		if !light.OptedIn {
			continue
		}
		wanted[light.ID] = true
		if !e.markers.Has(light.ID) {
			_ = e.attach(light.ID)
		}
	}
	for _, id := range e.markers.Attached() {
		if !wanted[id] {
			_ = e.detach(id)
		}
	}
}

func (e *Engine) submit(id string, hidden bool) bool {
	ok := e.writes.Submit(WriteJob{EntityID: id, Hidden: hidden, Issued: e.clock.Now()})
	if !ok {
		e.log.Warn().Str("light", id).Msg("write dispatcher closed, visibility write dropped")
	}
	return ok
}

func (e *Engine) writeVisibility(ctx context.Context, job WriteJob) error {
	return e.scene.SetHidden(ctx, job.EntityID, job.Hidden)
}

func (e *Engine) visibilityFailed(job WriteJob, err error) {
	e.report(&EntityWriteError{EntityID: job.EntityID, Op: OpSetHidden, Err: err})
}

func (e *Engine) attach(id string) error {
	if err := e.markers.Attach(id); err != nil {
		metrics.MarkerOperations.WithLabelValues("attach", "error").Inc()
		werr := &EntityWriteError{EntityID: id, Op: OpAttachMarker, Err: err}
		e.report(werr)
		return werr
	}
	metrics.MarkerOperations.WithLabelValues("attach", "ok").Inc()
	e.log.Debug().Str("light", id).Msg("marker attached")
	e.emit(Event{Kind: EventMarkerAttached, EntityID: id, Activity: e.Previous(), Time: e.clock.Now()})
	return nil
}

func (e *Engine) detach(id string) error {
	if err := e.markers.Detach(id); err != nil {
		metrics.MarkerOperations.WithLabelValues("detach", "error").Inc()
		werr := &EntityWriteError{EntityID: id, Op: OpDetachMarker, Err: err}
		e.report(werr)
		return werr
	}
	metrics.MarkerOperations.WithLabelValues("detach", "ok").Inc()
	e.log.Debug().Str("light", id).Msg("marker detached")
	e.emit(Event{Kind: EventMarkerDetached, EntityID: id, Activity: e.Previous(), Time: e.clock.Now()})
	return nil
}

func (e *Engine) missing(id, event string) error {
	metrics.MissingEntities.Inc()
	err := &MissingEntityError{EntityID: id}
	e.log.Debug().Err(err).Str("event", event).Msg("ignoring event for unknown light")
	return err
}

func (e *Engine) report(err error) {
	var werr *EntityWriteError
	ev := Event{Kind: EventWriteFailed, Error: err.Error(), Activity: e.Previous(), Time: e.clock.Now()}
	if errors.As(err, &werr) {
		ev.EntityID = werr.EntityID
	}
	e.log.Warn().Err(err).Msg("light update failed")
	if e.notifier != nil {
		e.notifier.Notify(err)
	}
	e.emit(ev)
}

func (e *Engine) emit(ev Event) {
	if e.onEvent != nil {
		e.onEvent(ev)
	}
}
