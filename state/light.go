package state

// LightEntity is a light placeable of the active scene.
//
// HasMarker mirrors the marker layer; the invariant kept by the sync engine
// is HasMarker == OptedIn.
type LightEntity struct {
	ID        string `json:"id"`
	OptedIn   bool   `json:"opted_in"`
	Hidden    bool   `json:"hidden"`
	HasMarker bool   `json:"has_marker"`
}

// DesiredHidden is the hidden value an opted-in light should carry for the
// given aggregate activity.
func DesiredHidden(active bool) bool {
	return !active
}
