package permission

// Action is one of the four CRUD verbs the matrix models. Free-form
// action strings are deliberately not supported; callers pass typed
// constants so that a typo cannot silently widen or narrow a grant.
type Action uint8

const (
	ActionCreate Action = iota
	ActionRead
	ActionUpdate
	ActionDelete

	actionCount = 4
)

// String returns the lowercase verb name used in audit metadata.
func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionRead:
		return "read"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Valid reports whether a is one of the four modeled verbs.
func (a Action) Valid() bool {
	return a < actionCount
}

// ActionSet is a bitmask over the four actions. The zero value allows
// nothing, which makes absent matrix entries deny-all for free.
type ActionSet uint8

// NewActionSet builds a set from the given actions. Invalid actions are
// ignored rather than widening the set.
func NewActionSet(actions ...Action) ActionSet {
	var s ActionSet
	for _, a := range actions {
		s = s.With(a)
	}
	return s
}

// AllActions is the full CRUD set.
func AllActions() ActionSet {
	return NewActionSet(ActionCreate, ActionRead, ActionUpdate, ActionDelete)
}

// With returns a copy of s with a added.
func (s ActionSet) With(a Action) ActionSet {
	if !a.Valid() {
		return s
	}
	return s | ActionSet(1)<<a
}

// Has reports whether a is in the set. Invalid actions are never present.
func (s ActionSet) Has(a Action) bool {
	if !a.Valid() {
		return false
	}
	return s&(ActionSet(1)<<a) != 0
}

// IsEmpty reports whether the set allows nothing.
func (s ActionSet) IsEmpty() bool {
	return s == 0
}

// Actions expands the set into a sorted slice, create through delete.
func (s ActionSet) Actions() []Action {
	if s == 0 {
		return nil
	}
	out := make([]Action, 0, actionCount)
	for a := Action(0); a < actionCount; a++ {
		if s.Has(a) {
			out = append(out, a)
		}
	}
	return out
}
