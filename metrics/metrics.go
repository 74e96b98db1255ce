package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sync engine metrics
var (
	// ActivityTransitions counts accepted aggregate activity changes by the new state
	ActivityTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "torchsync_activity_transitions_total",
			Help: "Accepted global illumination transitions by new state",
		},
		[]string{"activity"},
	)

	// DebouncedEvents counts tracker events suppressed because the aggregate did not change
	DebouncedEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "torchsync_debounced_events_total",
			Help: "Tracker events suppressed by the debounce guard",
		},
	)

	// GlobalIllumination is the cached aggregate (-1=unset, 0=inactive, 1=active)
	GlobalIllumination = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "torchsync_global_illumination",
			Help: "Cached global illumination state (-1=unset, 0=inactive, 1=active)",
		},
	)

	// SceneLoads counts unconditional scene refreshes
	SceneLoads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "torchsync_scene_loads_total",
			Help: "Scene load refreshes",
		},
	)

	// MissingEntities counts events that referenced a light no longer in the scene
	MissingEntities = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "torchsync_missing_entities_total",
			Help: "Events referencing a light that is not in the active scene",
		},
	)
)

// Entity write metrics
var (
	// VisibilityWrites counts completed visibility writes by status (ok/error)
	VisibilityWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "torchsync_visibility_writes_total",
			Help: "Visibility writes by status",
		},
		[]string{"status"},
	)

	// VisibilityWriteDuration tracks how long a visibility write takes to round-trip
	VisibilityWriteDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "torchsync_visibility_write_duration_seconds",
			Help:    "Visibility write duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
		},
	)

	// MarkerOperations counts marker attach/detach operations by status
	MarkerOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "torchsync_marker_operations_total",
			Help: "Marker attach and detach operations by status",
		},
		[]string{"operation", "status"},
	)
)

// Host event metrics
var (
	// HostEvents counts events received from the host by type
	HostEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "torchsync_host_events_total",
			Help: "Host events received by type",
		},
		[]string{"type"},
	)

	// DroppedEvents counts host events not handed to the engine, by reason
	DroppedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "torchsync_dropped_events_total",
			Help: "Host events dropped before reaching the sync engine, by reason",
		},
		[]string{"reason"},
	)

	// MalformedSources counts tracker entries without a readable active light field
	MalformedSources = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "torchsync_malformed_sources_total",
			Help: "Tracker entries treated as inactive because they could not be read",
		},
	)
)
