package ecs

import (
	"iter"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"

	"github.com/eldyer/shipyard/assert"
)

// Component is the interface all component kinds must implement.
// Components are pure data values attached to at most one entity each.
type Component interface {
	// Name returns a unique string identifier for the component kind.
	// It must be consistent across program executions.
	Name() string
}

// abstractStorage is the closed capability interface every storage kind implements. The
// registry holds heterogeneous kinds behind it; view acquisition downcasts to the concrete
// generic storage using the kind name as the discriminant.
type abstractStorage interface {
	kind() string
	size() int
	contains(id EntityID) bool
	removeEntity(id EntityID) bool
	rows() []EntityID
	clear()

	marshal() (json.RawMessage, error)
	unmarshal(json.RawMessage) error
}

var _ abstractStorage = &storage[Component]{}

// storage holds all live values of one component kind as a sparse-to-dense mapping: a
// sparse index keyed by entity slot points into parallel dense slices of (EntityID, value)
// pairs kept cache-contiguous.
//
// Removal swap-removes, so dense order is NOT stable across removals: any dense row held
// externally is invalidated by a removal on the same storage. This is a deliberate O(1)
// trade; callers must not rely on iteration order.
type storage[T Component] struct {
	compName string
	sparse   sparseIndex
	ids      []EntityID
	data     []T
}

func newStorage[T Component]() *storage[T] {
	var zero T
	return &storage[T]{
		compName: zero.Name(),
		sparse:   newSparseIndex(),
		ids:      make([]EntityID, 0),
		data:     make([]T, 0),
	}
}

func (s *storage[T]) kind() string {
	return s.compName
}

func (s *storage[T]) size() int {
	return len(s.ids)
}

// contains reports whether the exact identifier (index and generation) has a value.
// A stale generation resolves as absent.
func (s *storage[T]) contains(id EntityID) bool {
	row, ok := s.sparse.get(id.index)
	return ok && s.ids[row] == id
}

// get returns the value for the identifier, or false if absent or stale.
func (s *storage[T]) get(id EntityID) (T, bool) {
	row, ok := s.sparse.get(id.index)
	if !ok || s.ids[row] != id {
		var zero T
		return zero, false
	}
	return s.data[row], true
}

// ref returns a pointer into the dense slice for in-place mutation.
// The pointer is invalidated by any subsequent insert or removal on this storage.
func (s *storage[T]) ref(id EntityID) (*T, bool) {
	row, ok := s.sparse.get(id.index)
	if !ok || s.ids[row] != id {
		return nil, false
	}
	return &s.data[row], true
}

// insert sets the value for the identifier: replace in place when present (dense order
// unaffected), append otherwise. Liveness policy is enforced by the view layer.
func (s *storage[T]) insert(id EntityID, value T) {
	if row, ok := s.sparse.get(id.index); ok {
		// Overwriting also repairs the identity if the row held a stale occupant of the
		// same slot, restoring the dense/sparse invariant.
		s.ids[row] = id
		s.data[row] = value
		return
	}

	s.ids = append(s.ids, id)
	s.data = append(s.data, value)
	s.sparse.set(id.index, len(s.ids)-1)
}

// remove deletes the value for the identifier via swap-remove: the last dense entry moves
// into the vacated row and its sparse pointer is fixed up. O(1), order-destroying.
func (s *storage[T]) remove(id EntityID) (T, bool) {
	var zero T
	row, ok := s.sparse.get(id.index)
	if !ok || s.ids[row] != id {
		return zero, false
	}

	removed := s.data[row]
	last := len(s.ids) - 1

	s.ids[row] = s.ids[last]
	s.data[row] = s.data[last]
	s.ids = s.ids[:last]
	s.data = s.data[:last]

	ok = s.sparse.remove(id.index)
	assert.That(ok, "dense entry missing its sparse pointer")

	if row != last {
		moved := s.ids[row]
		s.sparse.set(moved.index, row)
	}

	return removed, true
}

// removeEntity is the type-erased removal used by the entity deletion sweep.
func (s *storage[T]) removeEntity(id EntityID) bool {
	_, ok := s.remove(id)
	return ok
}

// rows exposes the dense identifier column for type-erased validation.
func (s *storage[T]) rows() []EntityID {
	return s.ids
}

func (s *storage[T]) clear() {
	s.sparse = newSparseIndex()
	s.ids = s.ids[:0]
	s.data = s.data[:0]
}

// all iterates dense entries in current layout. The sequence is lazy, finite, and
// restartable; order is unspecified after any removal.
func (s *storage[T]) all() iter.Seq2[EntityID, T] {
	return func(yield func(EntityID, T) bool) {
		for i, id := range s.ids {
			if !yield(id, s.data[i]) {
				return
			}
		}
	}
}

// allRefs iterates dense entries yielding pointers for in-place mutation. The caller must
// not insert into or remove from the storage while iterating.
func (s *storage[T]) allRefs() iter.Seq2[EntityID, *T] {
	return func(yield func(EntityID, *T) bool) {
		for i, id := range s.ids {
			if !yield(id, &s.data[i]) {
				return
			}
		}
	}
}

// -------------------------------------------------------------------------------------------------
// Serialization
// -------------------------------------------------------------------------------------------------

// denseRow is the snapshot representation of one dense entry.
type denseRow struct {
	Index      uint32          `json:"index"`
	Generation uint32          `json:"generation"`
	Value      json.RawMessage `json:"value"`
}

// marshal converts the dense entries to their snapshot representation.
func (s *storage[T]) marshal() (json.RawMessage, error) {
	rows := make([]denseRow, len(s.ids))
	for i, id := range s.ids {
		value, err := json.Marshal(s.data[i])
		if err != nil {
			return nil, eris.Wrapf(err, "failed to serialize %s component at row %d", s.compName, i)
		}
		rows[i] = denseRow{Index: id.index, Generation: id.generation, Value: value}
	}

	return json.Marshal(rows)
}

// unmarshal replaces the storage contents from a snapshot representation.
func (s *storage[T]) unmarshal(raw json.RawMessage) error {
	var rows []denseRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return eris.Wrapf(err, "failed to deserialize %s storage", s.compName)
	}

	s.clear()
	for i, row := range rows {
		var value T
		if err := json.Unmarshal(row.Value, &value); err != nil {
			return eris.Wrapf(err, "failed to deserialize %s component at row %d", s.compName, i)
		}
		s.insert(EntityIDFromParts(row.Index, row.Generation), value)
	}
	return nil
}
