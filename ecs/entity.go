package ecs

import (
	"fmt"
	"sync"
)

// EntityID identifies an entity. It packs a slot index with a generation counter so that a
// recycled slot never aliases the identifier of its previous occupant: an ID is live only
// while the registry's stored generation for its index matches.
type EntityID struct {
	index      uint32
	generation uint32
}

// Index returns the dense slot index of the entity.
func (id EntityID) Index() uint32 {
	return id.index
}

// Generation returns the generation counter stamped at allocation.
func (id EntityID) Generation() uint32 {
	return id.generation
}

// IsZero reports whether the identifier is the zero value. The registry never issues it;
// generation counters start at 1.
func (id EntityID) IsZero() bool {
	return id.index == 0 && id.generation == 0
}

// String renders the identifier for debugging.
func (id EntityID) String() string {
	return fmt.Sprintf("EntityID(%d:%d)", id.index, id.generation)
}

// EntityIDFromParts reassembles an identifier from its raw parts. Intended for snapshot
// restore and tests; an arbitrary (index, generation) pair is not guaranteed to be live.
func EntityIDFromParts(index, generation uint32) EntityID {
	return EntityID{index: index, generation: generation}
}

// entities is the entity registry: an ordered sequence of slots, each carrying its current
// generation, with freed slots linked through a free list for O(1) recycling.
//
// The registry carries its own mutex rather than relying on the borrow layer. The declared
// entities access markers arbitrate *logical* scheduling (who may create or delete this
// batch); the mutex makes liveness checks safe from any goroutine, which storages rely on
// when rejecting inserts for dead entities.
type entities struct {
	mu          sync.Mutex
	generations []uint32
	free        []uint32
	alive       int
}

func newEntities() *entities {
	return &entities{
		generations: make([]uint32, 0),
		free:        make([]uint32, 0),
	}
}

// create issues a new identifier, recycling the most recently freed slot when one exists.
func (e *entities) create() EntityID {
	e.mu.Lock()
	defer e.mu.Unlock()

	var index uint32
	if n := len(e.free); n > 0 {
		index = e.free[n-1]
		e.free = e.free[:n-1]
	} else {
		index = uint32(len(e.generations))
		e.generations = append(e.generations, 0)
	}

	e.generations[index]++
	e.alive++
	return EntityID{index: index, generation: e.generations[index]}
}

// delete releases the identifier. Deleting a stale or unknown ID is a no-op and returns
// false; stale deletions are expected steady-state, not errors.
func (e *entities) delete(id EntityID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.isAliveLocked(id) {
		return false
	}

	e.generations[id.index]++
	e.free = append(e.free, id.index)
	e.alive--
	return true
}

// isAlive reports whether the identifier refers to a currently allocated entity.
func (e *entities) isAlive(id EntityID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isAliveLocked(id)
}

// Generations are odd while a slot is occupied: create bumps the counter to odd, delete
// bumps it to even. The parity check rejects forged IDs that carry a dead slot's counter.
func (e *entities) isAliveLocked(id EntityID) bool {
	if id.index >= uint32(len(e.generations)) {
		return false
	}
	return e.generations[id.index] == id.generation && id.generation%2 == 1
}

// count returns the number of live entities.
func (e *entities) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.alive
}
