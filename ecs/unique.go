package ecs

import (
	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

var _ abstractStorage = &unique[Component]{}

// unique is a singleton storage: no entity association, at most one value alive at a time.
// Presence is all-or-nothing.
type unique[T Component] struct {
	compName string
	value    T
	present  bool
}

func newUnique[T Component]() *unique[T] {
	var zero T
	return &unique[T]{compName: zero.Name()}
}

func (u *unique[T]) kind() string {
	return u.compName
}

func (u *unique[T]) size() int {
	if u.present {
		return 1
	}
	return 0
}

// contains always reports false: uniques have no entity association.
func (u *unique[T]) contains(EntityID) bool {
	return false
}

// removeEntity is a no-op for uniques; the deletion sweep skips them.
func (u *unique[T]) removeEntity(EntityID) bool {
	return false
}

func (u *unique[T]) rows() []EntityID {
	return nil
}

func (u *unique[T]) clear() {
	var zero T
	u.value = zero
	u.present = false
}

func (u *unique[T]) get() (T, bool) {
	return u.value, u.present
}

func (u *unique[T]) set(value T) {
	u.value = value
	u.present = true
}

func (u *unique[T]) remove() (T, bool) {
	if !u.present {
		var zero T
		return zero, false
	}
	out := u.value
	u.clear()
	return out, true
}

// uniqueSnapshot is the snapshot representation of a unique storage.
type uniqueSnapshot struct {
	Present bool            `json:"present"`
	Value   json.RawMessage `json:"value,omitempty"`
}

func (u *unique[T]) marshal() (json.RawMessage, error) {
	snap := uniqueSnapshot{Present: u.present}
	if u.present {
		value, err := json.Marshal(u.value)
		if err != nil {
			return nil, eris.Wrapf(err, "failed to serialize unique %s", u.compName)
		}
		snap.Value = value
	}
	return json.Marshal(snap)
}

func (u *unique[T]) unmarshal(raw json.RawMessage) error {
	var snap uniqueSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return eris.Wrapf(err, "failed to deserialize unique %s", u.compName)
	}

	u.clear()
	if snap.Present {
		var value T
		if err := json.Unmarshal(snap.Value, &value); err != nil {
			return eris.Wrapf(err, "failed to deserialize unique %s value", u.compName)
		}
		u.set(value)
	}
	return nil
}
