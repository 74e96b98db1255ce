package state

import (
	"encoding/json"
	"fmt"
)

// MonitoredSource is one entry of the light source tracker's monitored
// collection. Only the number of currently lit lights matters here.
type MonitoredSource struct {
	ID               string
	ActiveLightCount int
	Malformed        bool
}

type sourcePayload struct {
	ActiveLightCount *int              `json:"activeLightCount"`
	ID               string            `json:"id"`
	LightSources     []json.RawMessage `json:"lightSources"`
}

// UnmarshalJSON accepts either an activeLightCount integer or a lightSources
// array. A source with neither is kept but marked Malformed.
func (s *MonitoredSource) UnmarshalJSON(data []byte) error {
	var p sourcePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	s.ID = p.ID
	s.Malformed = false
	switch {
	case p.ActiveLightCount != nil:
		s.ActiveLightCount = *p.ActiveLightCount
	case p.LightSources != nil:
		s.ActiveLightCount = len(p.LightSources)
	default:
		s.ActiveLightCount = 0
		s.Malformed = true
	}
	return nil
}

// Active reports whether the source currently has at least one lit light.
func (s MonitoredSource) Active() bool {
	return !s.Malformed && s.ActiveLightCount > 0
}

// MalformedSourceError describes a tracker entry that could not be read.
// It never leaves the adapter that decoded the payload.
type MalformedSourceError struct {
	Err   error
	ID    string
	Index int
}

func (e *MalformedSourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("monitored source %d (%q) malformed: %v", e.Index, e.ID, e.Err)
	}
	return fmt.Sprintf("monitored source %d (%q) has no active light field", e.Index, e.ID)
}

func (e *MalformedSourceError) Unwrap() error { return e.Err }

// DecodeSources decodes each raw tracker entry on its own so one bad entry
// does not discard the snapshot. Entries that fail to decode, or that carry
// no active light field, come back as inactive sources alongside an error
// describing them.
func DecodeSources(raw []json.RawMessage) ([]MonitoredSource, []error) {
	sources := make([]MonitoredSource, 0, len(raw))
	var problems []error
	for i, entry := range raw {
		var s MonitoredSource
		if err := json.Unmarshal(entry, &s); err != nil {
			problems = append(problems, &MalformedSourceError{Index: i, Err: err})
			sources = append(sources, MonitoredSource{Malformed: true})
			continue
		}
		if s.Malformed {
			problems = append(problems, &MalformedSourceError{Index: i, ID: s.ID})
		}
		sources = append(sources, s)
	}
	return sources, problems
}
