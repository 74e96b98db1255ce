package engine

import "github.com/elijahnyp/torch_sync/state"

// Evaluate reports whether at least one monitored source has an active
// light. It is false for an empty collection and ignores malformed sources.
func Evaluate(sources []state.MonitoredSource) bool {
	for _, s := range sources {
		if s.Active() {
			return true
		}
	}
	return false
}
