package ecs

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// SystemFunc is the body of a system. It receives the views its access set declares,
// already checked out; a returned error aborts the workload run.
type SystemFunc func(vs *Views) error

// System pairs a named body with its declared access set.
type System struct {
	Name   string
	Access *Access
	Run    SystemFunc
}

// NewSystem starts a fluent system declaration.
func NewSystem(name string, fn SystemFunc) System {
	return System{Name: name, Access: NewAccess(), Run: fn}
}

// Reads declares shared access to the given component kinds.
func (s System) Reads(components ...Component) System {
	s.Access.Reads(components...)
	return s
}

// Writes declares exclusive access to the given component kinds.
func (s System) Writes(components ...Component) System {
	s.Access.Writes(components...)
	return s
}

// ReadsEntities declares shared access to the entity registry.
func (s System) ReadsEntities() System {
	s.Access.ReadsEntities()
	return s
}

// WritesEntities declares exclusive access to the entity registry.
func (s System) WritesEntities() System {
	s.Access.WritesEntities()
	return s
}

// AllStorages declares exclusive access to the whole storage registry.
func (s System) AllStorages() System {
	s.Access.AllStorages()
	return s
}

// compiledSystem is a System bound to the storage catalog.
type compiledSystem struct {
	name   string
	access *compiledAccess
	run    SystemFunc
}

// batch is one conflict-free group of systems. Systems within a batch may run
// concurrently; batches are separated by a full barrier.
type batch struct {
	systems []*compiledSystem
}

// workload is a named ordered list of systems together with its precomputed batch plan.
// The plan is fixed at registration and never changes between runs.
type workload struct {
	name    string
	systems []*compiledSystem
	batches []batch
}

// compileWorkload binds every system's access set to the catalog and plans the batches.
// Compiling registers every mentioned storage kind, so batch plans are stable regardless
// of which storages have been materialized.
func compileWorkload(reg *allStorages, name string, systems []System, log zerolog.Logger) (*workload, error) {
	if len(systems) == 0 {
		return nil, eris.Errorf("workload %q has no systems", name)
	}

	compiled := make([]*compiledSystem, 0, len(systems))
	for i, sys := range systems {
		if sys.Run == nil {
			return nil, eris.Errorf("workload %q: system %q has no body", name, sys.Name)
		}
		access := sys.Access
		if access == nil {
			access = NewAccess()
		}
		sysName := sys.Name
		if sysName == "" {
			sysName = "system-" + strconv.Itoa(i)
		}
		compiled = append(compiled, &compiledSystem{
			name:   sysName,
			access: access.compile(reg),
			run:    sys.Run,
		})
	}

	w := &workload{name: name, systems: compiled}
	w.batches = planBatches(compiled)

	log.Debug().
		Str("workload", name).
		Int("systems", len(compiled)).
		Int("batches", len(w.batches)).
		Msg("compiled workload")
	return w, nil
}

// planBatches greedily packs systems left to right. Each system joins the current open
// batch unless it conflicts with any member, in which case the batch is sealed and a new
// one opened. Within every batch relative declaration order is preserved, and each system
// conflicts with at least one member of the preceding batch (otherwise it would have
// joined it).
func planBatches(systems []*compiledSystem) []batch {
	var batches []batch
	var open []*compiledSystem

	for _, sys := range systems {
		joins := true
		for _, member := range open {
			if sys.access.conflicts(member.access) {
				joins = false
				break
			}
		}
		if !joins {
			batches = append(batches, batch{systems: open})
			open = nil
		}
		open = append(open, sys)
	}
	if len(open) > 0 {
		batches = append(batches, batch{systems: open})
	}
	return batches
}
