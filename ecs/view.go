package ecs

import (
	"iter"

	"github.com/rotisserie/eris"
)

// Views is the scoped handle set a system body or ad hoc closure receives. All checkouts
// declared in the access set are taken before the body runs and released unconditionally
// after it returns, on every exit path. Typed accessors (Shared, Mut, Unique, UniqueMut)
// downcast into the declared storages; requesting anything undeclared fails with
// ErrUndeclaredAccess.
type Views struct {
	world    *World
	access   *compiledAccess
	released bool
}

// acquireViews takes every checkout the compiled access set declares, fail-fast. On any
// conflict everything already taken is released and ErrBorrowConflict is returned. Within
// a scheduled batch acquisition cannot fail by construction; only ad hoc runs racing other
// work can observe a conflict.
func acquireViews(w *World, c *compiledAccess) (*Views, error) {
	reg := w.storages

	// Registry-wide checkout first: shared for any per-storage access, exclusive for the
	// all-storages marker.
	if c.all {
		if !reg.global.tryExclusive() {
			return nil, conflictError("all storages", true)
		}
		return &Views{world: w, access: c}, nil
	}
	if !reg.global.tryShared() {
		return nil, conflictError("all storages", false)
	}

	// The entity registry borrows independently of component storages.
	switch c.entities {
	case accessShared:
		if !w.entsBorrow.tryShared() {
			reg.global.releaseShared()
			return nil, conflictError("entities", false)
		}
	case accessExclusive:
		if !w.entsBorrow.tryExclusive() {
			reg.global.releaseShared()
			return nil, conflictError("entities", true)
		}
	case accessNone:
	}

	// Per-kind checkouts in ascending catalog order.
	var held []storageID
	rollback := func() {
		for _, id := range held {
			entry := reg.entry(id)
			if c.writes.Contains(id) {
				entry.borrow.releaseExclusive()
			} else {
				entry.borrow.releaseShared()
			}
		}
		switch c.entities {
		case accessShared:
			w.entsBorrow.releaseShared()
		case accessExclusive:
			w.entsBorrow.releaseExclusive()
		case accessNone:
		}
		reg.global.releaseShared()
	}

	var conflict error
	c.touches().Range(func(id uint32) {
		if conflict != nil {
			return
		}

		if !reg.implicit && !reg.materialized(id) {
			conflict = eris.Wrapf(ErrStorageNotFound, "%s", reg.nameOf(id))
			return
		}
		entry := reg.entry(id)

		exclusive := c.writes.Contains(id)
		if exclusive {
			if !entry.borrow.tryExclusive() {
				conflict = conflictError(reg.nameOf(id), true)
				return
			}
		} else if !entry.borrow.tryShared() {
			conflict = conflictError(reg.nameOf(id), false)
			return
		}
		held = append(held, id)
	})
	if conflict != nil {
		rollback()
		return nil, conflict
	}

	return &Views{world: w, access: c}, nil
}

// release returns every checkout. Idempotent; called by the scheduler and by World.Run on
// every exit path, including system failure.
func (v *Views) release() {
	if v.released {
		return
	}
	v.released = true

	reg := v.world.storages
	if v.access.all {
		reg.global.releaseExclusive()
		return
	}

	v.access.touches().Range(func(id uint32) {
		entry := reg.entry(id)
		if v.access.writes.Contains(id) {
			entry.borrow.releaseExclusive()
		} else {
			entry.borrow.releaseShared()
		}
	})

	switch v.access.entities {
	case accessShared:
		v.world.entsBorrow.releaseShared()
	case accessExclusive:
		v.world.entsBorrow.releaseExclusive()
	case accessNone:
	}
	reg.global.releaseShared()
}

// storageFor resolves the catalog ID for a typed accessor, enforcing the declared mode.
func storageFor(v *Views, name string, want accessMode) (storageID, error) {
	if v.access.modeOf(name) < want {
		return 0, eris.Wrapf(ErrUndeclaredAccess, "%s", name)
	}
	return v.world.storages.idOf(name), nil
}

// -------------------------------------------------------------------------------------------------
// Component views
// -------------------------------------------------------------------------------------------------

// View is a shared (read-only) handle into one component storage.
type View[T Component] struct {
	s *storage[T]
}

// Shared returns the read-only view for T. The access set must declare T read or written.
func Shared[T Component](v *Views) (View[T], error) {
	var zero T
	id, err := storageFor(v, zero.Name(), accessShared)
	if err != nil {
		return View[T]{}, err
	}

	st, err := ensureStorage[T](v.world.storages, id)
	if err != nil {
		return View[T]{}, err
	}
	return View[T]{s: st}, nil
}

// Get returns the component for the identifier, or false if absent or stale.
func (v View[T]) Get(id EntityID) (T, bool) {
	return v.s.get(id)
}

// Contains reports whether the identifier has a component in this storage.
func (v View[T]) Contains(id EntityID) bool {
	return v.s.contains(id)
}

// Len returns the number of stored components.
func (v View[T]) Len() int {
	return v.s.size()
}

// Iter iterates all (EntityID, value) pairs in current dense layout. Order is not stable
// across removals.
func (v View[T]) Iter() iter.Seq2[EntityID, T] {
	return v.s.all()
}

// ViewMut is an exclusive handle into one component storage.
type ViewMut[T Component] struct {
	s    *storage[T]
	ents *entities
}

// Mut returns the exclusive view for T. The access set must declare T written.
func Mut[T Component](v *Views) (ViewMut[T], error) {
	var zero T
	id, err := storageFor(v, zero.Name(), accessExclusive)
	if err != nil {
		return ViewMut[T]{}, err
	}

	st, err := ensureStorage[T](v.world.storages, id)
	if err != nil {
		return ViewMut[T]{}, err
	}
	return ViewMut[T]{s: st, ents: v.world.ents}, nil
}

// Get returns the component for the identifier, or false if absent or stale.
func (v ViewMut[T]) Get(id EntityID) (T, bool) {
	return v.s.get(id)
}

// Ref returns a pointer to the component for in-place mutation. The pointer is invalidated
// by any Insert or Remove on this storage.
func (v ViewMut[T]) Ref(id EntityID) (*T, bool) {
	return v.s.ref(id)
}

// Insert sets the component for a live entity, replacing any existing value in place.
// Inserting for a dead or unknown identifier is rejected with no effect and returns false.
func (v ViewMut[T]) Insert(id EntityID, value T) bool {
	if !v.ents.isAlive(id) {
		return false
	}
	v.s.insert(id, value)
	return true
}

// Remove deletes the component via swap-remove, returning the removed value if present.
func (v ViewMut[T]) Remove(id EntityID) (T, bool) {
	return v.s.remove(id)
}

// Contains reports whether the identifier has a component in this storage.
func (v ViewMut[T]) Contains(id EntityID) bool {
	return v.s.contains(id)
}

// Len returns the number of stored components.
func (v ViewMut[T]) Len() int {
	return v.s.size()
}

// Iter iterates all pairs yielding pointers for in-place mutation. The body must not
// Insert or Remove on this storage while iterating.
func (v ViewMut[T]) Iter() iter.Seq2[EntityID, *T] {
	return v.s.allRefs()
}

// -------------------------------------------------------------------------------------------------
// Entity registry views
// -------------------------------------------------------------------------------------------------

// ViewEntities is a shared handle on the entity registry.
type ViewEntities struct {
	e *entities
}

// Entities returns the shared entity registry view. The access set must declare the
// registry read or written (or carry the all-storages marker).
func (v *Views) Entities() (ViewEntities, error) {
	if v.access.entities == accessNone && !v.access.all {
		return ViewEntities{}, eris.Wrap(ErrUndeclaredAccess, "entities")
	}
	return ViewEntities{e: v.world.ents}, nil
}

// Alive reports whether the identifier refers to a live entity.
func (v ViewEntities) Alive(id EntityID) bool {
	return v.e.isAlive(id)
}

// Count returns the number of live entities.
func (v ViewEntities) Count() int {
	return v.e.count()
}

// ViewEntitiesMut is an exclusive handle on the entity registry. It can create entities;
// deletion lives on Views under the all-storages marker because the eager sweep touches
// every storage.
type ViewEntitiesMut struct {
	e *entities
}

// EntitiesMut returns the exclusive entity registry view. The access set must declare the
// registry written (or carry the all-storages marker).
func (v *Views) EntitiesMut() (ViewEntitiesMut, error) {
	if v.access.entities != accessExclusive && !v.access.all {
		return ViewEntitiesMut{}, eris.Wrap(ErrUndeclaredAccess, "entities")
	}
	return ViewEntitiesMut{e: v.world.ents}, nil
}

// Create allocates a new entity. O(1), never fails.
func (v ViewEntitiesMut) Create() EntityID {
	return v.e.create()
}

// Alive reports whether the identifier refers to a live entity.
func (v ViewEntitiesMut) Alive(id EntityID) bool {
	return v.e.isAlive(id)
}

// Count returns the number of live entities.
func (v ViewEntitiesMut) Count() int {
	return v.e.count()
}

// DeleteEntity deletes an entity and eagerly sweeps its components from every storage.
// Requires the all-storages marker. Deleting a stale identifier is a no-op returning false.
func (v *Views) DeleteEntity(id EntityID) (bool, error) {
	if !v.access.all {
		return false, eris.Wrap(ErrUndeclaredAccess, "entity deletion requires the all-storages marker")
	}

	if !v.world.ents.delete(id) {
		return false, nil
	}
	v.world.storages.sweep(id)
	return true, nil
}

// -------------------------------------------------------------------------------------------------
// Unique storage views
// -------------------------------------------------------------------------------------------------

// UniqueView is a shared handle on a unique (singleton) storage.
type UniqueView[T Component] struct {
	u *unique[T]
}

// Unique returns the shared view of the unique storage for T.
func Unique[T Component](v *Views) (UniqueView[T], error) {
	var zero T
	id, err := storageFor(v, zero.Name(), accessShared)
	if err != nil {
		return UniqueView[T]{}, err
	}

	u, err := ensureUnique[T](v.world.storages, id)
	if err != nil {
		return UniqueView[T]{}, err
	}
	return UniqueView[T]{u: u}, nil
}

// Get returns the unique value, or ErrMissingUnique if none is present.
func (v UniqueView[T]) Get() (T, error) {
	value, ok := v.u.get()
	if !ok {
		var zero T
		return zero, eris.Wrapf(ErrMissingUnique, "%s", zero.Name())
	}
	return value, nil
}

// UniqueViewMut is an exclusive handle on a unique storage. It can replace the value in
// place; adding the first value or removing it outright is structural and requires the
// all-storages marker (AddUnique / RemoveUnique).
type UniqueViewMut[T Component] struct {
	u *unique[T]
}

// UniqueMut returns the exclusive view of the unique storage for T.
func UniqueMut[T Component](v *Views) (UniqueViewMut[T], error) {
	var zero T
	id, err := storageFor(v, zero.Name(), accessExclusive)
	if err != nil {
		return UniqueViewMut[T]{}, err
	}

	u, err := ensureUnique[T](v.world.storages, id)
	if err != nil {
		return UniqueViewMut[T]{}, err
	}
	return UniqueViewMut[T]{u: u}, nil
}

// Get returns the unique value, or ErrMissingUnique if none is present.
func (v UniqueViewMut[T]) Get() (T, error) {
	value, ok := v.u.get()
	if !ok {
		var zero T
		return zero, eris.Wrapf(ErrMissingUnique, "%s", zero.Name())
	}
	return value, nil
}

// Set replaces the current value. Fails with ErrMissingUnique if the unique was never
// added; use AddUnique under the all-storages marker first.
func (v UniqueViewMut[T]) Set(value T) error {
	if _, ok := v.u.get(); !ok {
		var zero T
		return eris.Wrapf(ErrMissingUnique, "%s", zero.Name())
	}
	v.u.set(value)
	return nil
}

// AddUnique installs (or replaces) the unique value for T. Requires the all-storages
// marker: presence transitions are structural registry mutations.
func AddUnique[T Component](v *Views, value T) error {
	if !v.access.all {
		return eris.Wrap(ErrUndeclaredAccess, "adding a unique requires the all-storages marker")
	}

	var zero T
	id := v.world.storages.idOf(zero.Name())
	u, err := ensureUnique[T](v.world.storages, id)
	if err != nil {
		return err
	}
	u.set(value)
	return nil
}

// RemoveUnique removes and returns the unique value for T. Requires the all-storages
// marker. Fails with ErrMissingUnique if no value is present.
func RemoveUnique[T Component](v *Views) (T, error) {
	var zero T
	if !v.access.all {
		return zero, eris.Wrap(ErrUndeclaredAccess, "removing a unique requires the all-storages marker")
	}

	id := v.world.storages.idOf(zero.Name())
	u, err := ensureUnique[T](v.world.storages, id)
	if err != nil {
		return zero, err
	}

	value, ok := u.remove()
	if !ok {
		return zero, eris.Wrapf(ErrMissingUnique, "%s", zero.Name())
	}
	return value, nil
}
