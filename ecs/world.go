package ecs

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// World owns the entity registry, the storage catalog, and the registered workloads.
// A single World is safe for concurrent use: storage access is arbitrated by checkouts,
// and the workload table carries its own lock.
type World struct {
	cfg Config
	log zerolog.Logger

	ents       *entities
	entsBorrow borrowState
	storages   *allStorages
	sched      *scheduler

	mu              sync.RWMutex
	workloads       map[string]*workload
	defaultWorkload string
}

// NewWorld builds a World from the environment, then applies the given options on top.
func NewWorld(opts ...Option) (*World, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, eris.Wrapf(err, "unknown log level %q", cfg.LogLevel)
	}
	log := zerolog.Nop()
	if cfg.logger != nil {
		log = cfg.logger.Level(level)
	}

	w := &World{
		cfg:       cfg,
		log:       log,
		ents:      newEntities(),
		storages:  newAllStorages(!cfg.StrictStorages),
		workloads: make(map[string]*workload),
	}
	w.sched = newScheduler(cfg, log)

	log.Debug().
		Int("workers", cfg.Workers).
		Bool("sequential", cfg.Sequential).
		Bool("strict_storages", cfg.StrictStorages).
		Msg("world created")
	return w, nil
}

// AddWorkload compiles and registers a named workload. Registering an existing name
// replaces the previous workload; the batch plan is fixed here and reused on every run.
// The first workload ever registered becomes the default until SetDefaultWorkload
// chooses another.
func (w *World) AddWorkload(name string, systems ...System) error {
	wl, err := compileWorkload(w.storages, name, systems, w.log)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.workloads[name] = wl
	if w.defaultWorkload == "" {
		w.defaultWorkload = name
	}
	return nil
}

// SetDefaultWorkload marks a registered workload as the default for RunDefaultWorkload.
func (w *World) SetDefaultWorkload(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.workloads[name]; !ok {
		return eris.Wrapf(ErrWorkloadNotFound, "%q", name)
	}
	w.defaultWorkload = name
	return nil
}

// RunWorkload executes the named workload to completion. Batches run in plan order with a
// full barrier between them; the first system failure aborts the run and is returned.
func (w *World) RunWorkload(ctx context.Context, name string) error {
	w.mu.RLock()
	wl, ok := w.workloads[name]
	w.mu.RUnlock()
	if !ok {
		return eris.Wrapf(ErrWorkloadNotFound, "%q", name)
	}
	return w.sched.runWorkload(ctx, w, wl)
}

// RunDefaultWorkload executes the default workload: the first one registered, or the one
// chosen by SetDefaultWorkload.
func (w *World) RunDefaultWorkload(ctx context.Context) error {
	w.mu.RLock()
	name := w.defaultWorkload
	w.mu.RUnlock()

	if name == "" {
		return eris.Wrap(ErrWorkloadNotFound, "no workload registered")
	}
	return w.RunWorkload(ctx, name)
}

// Run executes a one-off closure with the declared access, outside any workload. The
// checkouts are taken immediately; a conflict with concurrently running work returns
// ErrBorrowConflict rather than waiting.
func (w *World) Run(access *Access, fn SystemFunc) error {
	if access == nil {
		access = NewAccess()
	}

	vs, err := acquireViews(w, access.compile(w.storages))
	if err != nil {
		return err
	}
	defer vs.release()
	return fn(vs)
}

// CreateEntity allocates a new entity via a one-off exclusive checkout of the entity
// registry. Fails only if the registry is currently borrowed.
func (w *World) CreateEntity() (EntityID, error) {
	var id EntityID
	err := w.Run(NewAccess().WritesEntities(), func(vs *Views) error {
		ents, err := vs.EntitiesMut()
		if err != nil {
			return err
		}
		id = ents.Create()
		return nil
	})
	return id, err
}

// DeleteEntity deletes an entity and sweeps its components from every storage, via a
// one-off registry-wide exclusive checkout. Deleting a stale identifier returns false.
func (w *World) DeleteEntity(id EntityID) (bool, error) {
	var deleted bool
	err := w.Run(NewAccess().AllStorages(), func(vs *Views) error {
		var err error
		deleted, err = vs.DeleteEntity(id)
		return err
	})
	return deleted, err
}

// EntityCount returns the number of live entities.
func (w *World) EntityCount() int {
	return w.ents.count()
}

// StorageKinds returns the sorted names of all materialized storages.
func (w *World) StorageKinds() []string {
	return w.storages.kinds()
}

// Register materializes the component storage for T ahead of first use. Required in
// strict mode; a no-op if the storage already exists.
func Register[T Component](w *World) error {
	var zero T
	id := w.storages.idOf(zero.Name())
	_, err := materializeStorage[T](w.storages, id)
	return err
}

// RegisterUnique materializes the unique storage for T without installing a value.
func RegisterUnique[T Component](w *World) error {
	var zero T
	id := w.storages.idOf(zero.Name())
	_, err := ensureUnique[T](w.storages, id)
	return err
}

// SetUnique installs or replaces the unique value for T via a one-off registry-wide
// exclusive checkout.
func SetUnique[T Component](w *World, value T) error {
	return w.Run(NewAccess().AllStorages(), func(vs *Views) error {
		return AddUnique(vs, value)
	})
}

// TakeUnique removes and returns the unique value for T via a one-off registry-wide
// exclusive checkout. Fails with ErrMissingUnique if no value is present.
func TakeUnique[T Component](w *World) (T, error) {
	var value T
	err := w.Run(NewAccess().AllStorages(), func(vs *Views) error {
		var err error
		value, err = RemoveUnique[T](vs)
		return err
	})
	return value, err
}
