package engine

import "fmt"

// Operations named in EntityWriteError.
const (
	OpSetHidden    = "set hidden"
	OpAttachMarker = "attach marker"
	OpDetachMarker = "detach marker"
)

// EntityWriteError is a failed write to a single light. It is reported, never
// retried, and does not stop writes to other lights.
type EntityWriteError struct {
	Err      error
	EntityID string
	Op       string
}

func (e *EntityWriteError) Error() string {
	return fmt.Sprintf("%s on light %s: %v", e.Op, e.EntityID, e.Err)
}

func (e *EntityWriteError) Unwrap() error { return e.Err }

// MissingEntityError means an event referenced a light that is not in the
// active scene, usually because it was deleted before the event was handled.
type MissingEntityError struct {
	EntityID string
}

func (e *MissingEntityError) Error() string {
	return fmt.Sprintf("light %s is not in the active scene", e.EntityID)
}
