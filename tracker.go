package main

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/elijahnyp/torch_sync/metrics"
	"github.com/elijahnyp/torch_sync/state"
	"github.com/rs/zerolog"
)

// TrackerSnapshot holds the last set of monitored sources the host reported.
// The engine reads it through Sources.
type TrackerSnapshot struct {
	updated time.Time
	log     zerolog.Logger
	sources []state.MonitoredSource
	mu      sync.RWMutex
}

func NewTrackerSnapshot(log zerolog.Logger) *TrackerSnapshot {
	return &TrackerSnapshot{log: log}
}

// Update replaces the snapshot. Entries that cannot be read are kept as
// inactive sources; the number of such entries is returned.
func (t *TrackerSnapshot) Update(raw []json.RawMessage, now time.Time) int {
	sources, problems := state.DecodeSources(raw)
	for _, err := range problems {
		metrics.MalformedSources.Inc()
		t.log.Debug().Err(err).Msg("treating monitored source as inactive")
	}

	t.mu.Lock()
	t.sources = sources
	t.updated = now
	t.mu.Unlock()
	return len(problems)
}

func (t *TrackerSnapshot) Sources() []state.MonitoredSource {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]state.MonitoredSource, len(t.sources))
	copy(out, t.sources)
	return out
}

// Counts returns the number of tracked sources and how many of them are lit.
func (t *TrackerSnapshot) Counts() (total, active int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, s := range t.sources {
		if s.Active() {
			active++
		}
	}
	return len(t.sources), active
}

func (t *TrackerSnapshot) Updated() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.updated
}
