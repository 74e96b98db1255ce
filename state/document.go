package state

// FlagScope is the namespace the host stores this module's flags under.
const FlagScope = "torchsync-shadowdark"

// OptInFlag is the flag key holding the opt-in boolean.
const OptInFlag = "enabled"

// LightDocument is the host's persisted representation of a light.
type LightDocument struct {
	Flags  map[string]map[string]any `json:"flags,omitempty"`
	ID     string                    `json:"_id"`
	Hidden bool                      `json:"hidden"`
}

// LightFromDocument reads the typed light record out of a host document.
// A missing or non-boolean opt-in flag reads as false.
func LightFromDocument(doc LightDocument) LightEntity {
	return LightEntity{
		ID:      doc.ID,
		Hidden:  doc.Hidden,
		OptedIn: flagBool(doc.Flags, FlagScope, OptInFlag),
	}
}

// Document renders the light back into the host's document shape.
func (l LightEntity) Document() LightDocument {
	return LightDocument{
		ID:     l.ID,
		Hidden: l.Hidden,
		Flags: map[string]map[string]any{
			FlagScope: {OptInFlag: l.OptedIn},
		},
	}
}

func flagBool(flags map[string]map[string]any, scope, key string) bool {
	v, ok := flags[scope][key].(bool)
	return ok && v
}

// LightChanges is the partial update delta the host reports after a light
// document changes.
type LightChanges map[string]any

// OptInChange reports whether the delta touches the opt-in flag and, if so,
// the new value. A present but non-boolean value (a cleared flag) reads as
// false.
func (c LightChanges) OptInChange() (optedIn bool, changed bool) {
	flags, ok := c["flags"].(map[string]any)
	if !ok {
		return false, false
	}
	scoped, ok := flags[FlagScope].(map[string]any)
	if !ok {
		return false, false
	}
	raw, ok := scoped[OptInFlag]
	if !ok {
		return false, false
	}
	v, _ := raw.(bool)
	return v, true
}

// HiddenChange reports whether the delta sets the hidden field.
func (c LightChanges) HiddenChange() (hidden bool, changed bool) {
	v, ok := c["hidden"].(bool)
	return v, ok
}

// Apply folds the delta into a light record.
func (c LightChanges) Apply(l LightEntity) LightEntity {
	if v, ok := c.OptInChange(); ok {
		l.OptedIn = v
	}
	if v, ok := c.HiddenChange(); ok {
		l.Hidden = v
	}
	return l
}
