package ecs

import (
	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

// worldSnapshot is the serialized form of a World: the full entity registry state plus
// every materialized storage keyed by kind name.
type worldSnapshot struct {
	Generations []uint32                   `json:"generations"`
	Free        []uint32                   `json:"free"`
	Storages    map[string]json.RawMessage `json:"storages"`
}

// Snapshot serializes the entity registry and every materialized storage. It takes the
// registry-wide exclusive checkout, so it cannot overlap any running system.
func (w *World) Snapshot() ([]byte, error) {
	var out []byte
	err := w.Run(NewAccess().AllStorages(), func(*Views) error {
		snap := worldSnapshot{
			Storages: make(map[string]json.RawMessage),
		}

		w.ents.mu.Lock()
		snap.Generations = append([]uint32(nil), w.ents.generations...)
		snap.Free = append([]uint32(nil), w.ents.free...)
		w.ents.mu.Unlock()

		for _, name := range w.storages.kinds() {
			entry := w.storages.entry(w.storages.idOf(name))
			raw, err := entry.store.marshal()
			if err != nil {
				return err
			}
			snap.Storages[name] = raw
		}

		var err error
		out, err = json.Marshal(snap)
		return eris.Wrap(err, "failed to serialize world snapshot")
	})
	return out, err
}

// Restore replaces the entity registry and storage contents from a snapshot. Every storage
// kind in the snapshot must already be materialized (via Register, RegisterUnique, or
// prior use) so the concrete value types are known. Component rows referencing entities
// that are not alive in the restored registry fail with ErrStaleEntity.
func (w *World) Restore(data []byte) error {
	return w.Run(NewAccess().AllStorages(), func(*Views) error {
		var snap worldSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return eris.Wrap(err, "failed to deserialize world snapshot")
		}

		w.ents.mu.Lock()
		w.ents.generations = append([]uint32(nil), snap.Generations...)
		w.ents.free = append([]uint32(nil), snap.Free...)
		w.ents.alive = 0
		for _, gen := range w.ents.generations {
			if gen%2 == 1 {
				w.ents.alive++
			}
		}
		w.ents.mu.Unlock()

		// Clear materialized storages absent from the snapshot, then load the rest.
		for _, name := range w.storages.kinds() {
			if _, ok := snap.Storages[name]; !ok {
				w.storages.entry(w.storages.idOf(name)).store.clear()
			}
		}
		for name, raw := range snap.Storages {
			id, registered := w.storages.lookup(name)
			if !registered || w.storages.entry(id).store == nil {
				return eris.Wrapf(ErrStorageNotFound, "snapshot names unregistered storage %s", name)
			}
			store := w.storages.entry(id).store
			if err := store.unmarshal(raw); err != nil {
				return err
			}
			for _, rowID := range store.rows() {
				if !w.ents.isAlive(rowID) {
					return eris.Wrapf(ErrStaleEntity, "snapshot row %s in storage %s", rowID, name)
				}
			}
		}
		return nil
	})
}
