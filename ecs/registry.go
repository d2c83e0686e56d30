package ecs

import (
	"sort"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/eldyer/shipyard/assert"
)

// storageID is the dense identifier a storage kind gets in the registry catalog.
type storageID = uint32

// storageEntry pairs a type-erased storage with its access-control wrapper. The store stays
// nil until first materialized: the catalog learns kind names at workload registration, but
// the concrete type is only known at the typed view accessor.
type storageEntry struct {
	borrow borrowState
	store  abstractStorage
}

// allStorages is the storage registry: a catalog from kind name to storageID and a dense
// slice of entries. The registry exclusively owns every storage; views never outlive the
// system or closure that requested them.
//
// global is the registry-wide checkout. Any per-storage access holds it shared; structural
// mutation (registering kinds explicitly, unique add/remove, the entity deletion sweep)
// holds it exclusively and therefore cannot overlap any other access.
type allStorages struct {
	mu       sync.RWMutex // guards catalog/entries structure
	global   borrowState
	catalog  map[string]storageID
	names    []string // storageID -> kind name
	entries  []*storageEntry
	implicit bool // create missing storages on demand
}

func newAllStorages(implicit bool) *allStorages {
	return &allStorages{
		catalog:  make(map[string]storageID),
		names:    make([]string, 0),
		entries:  make([]*storageEntry, 0),
		implicit: implicit,
	}
}

// idOf returns the catalog ID for a kind name, registering it on first mention. The entry
// starts with a nil store.
func (r *allStorages) idOf(name string) storageID {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, exists := r.catalog[name]; exists {
		return id
	}

	id := storageID(len(r.entries))
	r.catalog[name] = id
	r.names = append(r.names, name)
	r.entries = append(r.entries, &storageEntry{})
	assert.That(int(id)+1 == len(r.entries), "storage id doesn't match number of entries")
	return id
}

// lookup returns the catalog ID for a kind name without registering it.
func (r *allStorages) lookup(name string) (storageID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.catalog[name]
	return id, ok
}

// nameOf returns the kind name for a catalog ID.
func (r *allStorages) nameOf(id storageID) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names[id]
}

// entry returns the entry for a catalog ID. Entry pointers are stable: entries is
// append-only.
func (r *allStorages) entry(id storageID) *storageEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[id]
}

// materialized reports whether the entry's concrete storage exists yet. The store field
// is written under the registry lock, so it must be read under it too.
func (r *allStorages) materialized(id storageID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[id].store != nil
}

// kinds returns the names of all materialized storage kinds in sorted order. This is the
// enumeration surface the external serialization collaborator consumes.
func (r *allStorages) kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.catalog))
	for name, id := range r.catalog {
		if r.entries[id].store != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// sweep removes every component the entity holds in any storage. Must only run under the
// registry-wide exclusive checkout.
func (r *allStorages) sweep(id EntityID) {
	r.mu.RLock()
	entries := r.entries
	r.mu.RUnlock()

	for _, entry := range entries {
		if entry.store != nil {
			entry.store.removeEntity(id)
		}
	}
}

// ensureStorage materializes (or fetches) the concrete component storage for T under the
// given catalog ID. In strict mode a missing storage fails with ErrStorageNotFound instead
// of being created.
func ensureStorage[T Component](r *allStorages, id storageID) (*storage[T], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := r.entries[id]
	if entry.store == nil {
		if !r.implicit {
			var zero T
			return nil, eris.Wrapf(ErrStorageNotFound, "%s (register it explicitly or enable implicit creation)", zero.Name())
		}
		entry.store = newStorage[T]()
	}

	st, ok := entry.store.(*storage[T])
	if !ok {
		var zero T
		return nil, eris.Wrapf(ErrNonUnique, "%s is a unique storage, not a component storage", zero.Name())
	}
	return st, nil
}

// materializeStorage creates (or fetches) the concrete component storage for T regardless
// of strict mode. It backs explicit registration; implicit creation goes through
// ensureStorage.
func materializeStorage[T Component](r *allStorages, id storageID) (*storage[T], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := r.entries[id]
	if entry.store == nil {
		entry.store = newStorage[T]()
	}

	st, ok := entry.store.(*storage[T])
	if !ok {
		var zero T
		return nil, eris.Wrapf(ErrNonUnique, "%s is a unique storage, not a component storage", zero.Name())
	}
	return st, nil
}

// ensureUnique materializes (or fetches) the unique storage for T under the given catalog
// ID. Unlike component storages, uniques are materialized even in strict mode: their values
// only exist after an explicit AddUnique, so presence is checked there instead.
func ensureUnique[T Component](r *allStorages, id storageID) (*unique[T], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := r.entries[id]
	if entry.store == nil {
		entry.store = newUnique[T]()
	}

	u, ok := entry.store.(*unique[T])
	if !ok {
		var zero T
		return nil, eris.Wrapf(ErrNonUnique, "%s is a component storage, not a unique storage", zero.Name())
	}
	return u, nil
}
