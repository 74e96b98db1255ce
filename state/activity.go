package state

import "fmt"

// Activity is the cached aggregate illumination state. The zero value is
// ActivityUnset, which never compares equal to an evaluated state.
type Activity int

const (
	ActivityUnset Activity = iota
	ActivityInactive
	ActivityActive
)

func ActivityFromBool(active bool) Activity {
	if active {
		return ActivityActive
	}
	return ActivityInactive
}

// Known reports whether the activity has been evaluated at least once.
func (a Activity) Known() bool { return a != ActivityUnset }

// Bool returns true only for ActivityActive.
func (a Activity) Bool() bool { return a == ActivityActive }

func (a Activity) String() string {
	switch a {
	case ActivityActive:
		return "active"
	case ActivityInactive:
		return "inactive"
	default:
		return "unset"
	}
}

func (a Activity) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Activity) UnmarshalText(text []byte) error {
	switch string(text) {
	case "active":
		*a = ActivityActive
	case "inactive":
		*a = ActivityInactive
	case "unset", "":
		*a = ActivityUnset
	default:
		return fmt.Errorf("unknown activity %q", text)
	}
	return nil
}
