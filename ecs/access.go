package ecs

import "github.com/kelindar/bitmap"

// accessMode is the declared intent toward one borrowable: none, shared, or exclusive.
type accessMode uint8

const (
	accessNone accessMode = iota
	accessShared
	accessExclusive
)

// Access declares the data a system or ad hoc run touches: per storage kind shared or
// exclusive intent, an independent mode for the entity registry, and the registry-wide
// marker for structural mutation. The scheduler's conflict analysis covers exactly what is
// declared here; touching anything undeclared from inside a body is rejected at the view
// accessor.
type Access struct {
	reads    []string
	writes   []string
	entities accessMode
	all      bool
}

// NewAccess returns an empty access declaration.
func NewAccess() *Access {
	return &Access{}
}

// Reads declares shared access to the storages of the given component kinds.
func (a *Access) Reads(components ...Component) *Access {
	for _, c := range components {
		a.reads = append(a.reads, c.Name())
	}
	return a
}

// Writes declares exclusive access to the storages of the given component kinds.
func (a *Access) Writes(components ...Component) *Access {
	for _, c := range components {
		a.writes = append(a.writes, c.Name())
	}
	return a
}

// ReadsEntities declares shared access to the entity registry (liveness checks).
func (a *Access) ReadsEntities() *Access {
	if a.entities < accessShared {
		a.entities = accessShared
	}
	return a
}

// WritesEntities declares exclusive access to the entity registry, required to create
// entities. Entity deletion additionally needs AllStorages: the eager orphan sweep mutates
// every storage.
func (a *Access) WritesEntities() *Access {
	a.entities = accessExclusive
	return a
}

// AllStorages declares exclusive access to the whole storage registry. A system carrying
// this marker can never share a batch with any other system. It gates structural mutation:
// unique add/remove, explicit storage registration, and entity deletion.
func (a *Access) AllStorages() *Access {
	a.all = true
	return a
}

// compiledAccess is an Access resolved against the registry catalog: kind names become
// storageIDs so conflict checks are bitmap intersections.
type compiledAccess struct {
	reads    bitmap.Bitmap
	writes   bitmap.Bitmap
	declared map[string]accessMode // kind name -> strongest declared mode
	entities accessMode
	all      bool
}

// compile resolves the declaration against the catalog, registering kind names on first
// mention. A kind declared both read and written compiles to exclusive.
func (a *Access) compile(reg *allStorages) *compiledAccess {
	c := &compiledAccess{
		declared: make(map[string]accessMode, len(a.reads)+len(a.writes)),
		entities: a.entities,
		all:      a.all,
	}

	for _, name := range a.reads {
		c.reads.Set(reg.idOf(name))
		if c.declared[name] < accessShared {
			c.declared[name] = accessShared
		}
	}
	for _, name := range a.writes {
		c.writes.Set(reg.idOf(name))
		c.declared[name] = accessExclusive
	}
	return c
}

// touches returns the union of read and written kinds. Built with Range+Set because the
// bitmap word-level combinators require the destination to already span the operand.
func (c *compiledAccess) touches() bitmap.Bitmap {
	var touched bitmap.Bitmap
	c.reads.Range(func(id uint32) {
		touched.Set(id)
	})
	c.writes.Range(func(id uint32) {
		touched.Set(id)
	})
	return touched
}

// conflicts reports whether two access sets cannot run concurrently: both touch a common
// kind with at least one exclusive side, either needs the entity registry exclusively while
// the other touches it at all, or either carries the registry-wide marker.
func (c *compiledAccess) conflicts(o *compiledAccess) bool {
	if c.all || o.all {
		return true
	}

	if c.entities == accessExclusive && o.entities != accessNone {
		return true
	}
	if o.entities == accessExclusive && c.entities != accessNone {
		return true
	}

	return overlaps(c.writes, o.touches()) || overlaps(o.writes, c.touches())
}

// modeOf returns the declared mode for a kind name, treating the registry-wide marker as
// exclusive on everything.
func (c *compiledAccess) modeOf(name string) accessMode {
	if c.all {
		return accessExclusive
	}
	return c.declared[name]
}

func overlaps(a, b bitmap.Bitmap) bool {
	found := false
	a.Range(func(id uint32) {
		if b.Contains(id) {
			found = true
		}
	})
	return found
}
