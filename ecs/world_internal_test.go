package ecs

import (
	"bytes"
	"context"
	"sync/atomic"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eldyer/shipyard/internal/testutils"
)

func TestWorld_RunWorkloadMutatesState(t *testing.T) {
	t.Parallel()
	w := newTestWorld(t)

	var pos testutils.Position
	var vel testutils.Velocity

	var ids []EntityID
	err := w.Run(NewAccess().Writes(pos, vel).WritesEntities(), func(vs *Views) error {
		ents, err := vs.EntitiesMut()
		require.NoError(t, err)
		posMut, err := Mut[testutils.Position](vs)
		require.NoError(t, err)
		velMut, err := Mut[testutils.Velocity](vs)
		require.NoError(t, err)

		for i := range 10 {
			id := ents.Create()
			posMut.Insert(id, testutils.Position{})
			velMut.Insert(id, testutils.Velocity{X: float64(i)})
			ids = append(ids, id)
		}
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, w.AddWorkload("tick",
		System{Name: "integrate", Access: NewAccess().Reads(vel).Writes(pos), Run: func(vs *Views) error {
			posMut, err := Mut[testutils.Position](vs)
			if err != nil {
				return err
			}
			velView, err := Shared[testutils.Velocity](vs)
			if err != nil {
				return err
			}
			for id, p := range posMut.Iter() {
				v, _ := velView.Get(id)
				p.X += v.X
			}
			return nil
		}},
	))

	require.NoError(t, w.RunWorkload(context.Background(), "tick"))
	require.NoError(t, w.RunWorkload(context.Background(), "tick"))

	err = w.Run(NewAccess().Reads(pos), func(vs *Views) error {
		view, err := Shared[testutils.Position](vs)
		require.NoError(t, err)
		for i, id := range ids {
			got, ok := view.Get(id)
			require.True(t, ok)
			assert.Equal(t, float64(i)*2, got.X)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestWorld_ReadOnlyAccessRun(t *testing.T) {
	t.Parallel()
	w := newTestWorld(t)

	var pos testutils.Position
	var vel testutils.Velocity

	// Acquisition of a reads-only declaration must succeed end to end.
	err := w.Run(NewAccess().Reads(pos, vel), func(vs *Views) error {
		view, err := Shared[testutils.Position](vs)
		if err != nil {
			return err
		}
		assert.Equal(t, 0, view.Len())
		return nil
	})
	require.NoError(t, err)

	// And a workload made of reads-only systems registers and runs.
	require.NoError(t, w.AddWorkload("readers",
		System{Name: "r1", Access: NewAccess().Reads(pos), Run: func(*Views) error { return nil }},
		System{Name: "r2", Access: NewAccess().Reads(pos, vel), Run: func(*Views) error { return nil }},
	))
	require.NoError(t, w.RunWorkload(context.Background(), "readers"))
}

func TestWorld_WorkloadNotFound(t *testing.T) {
	t.Parallel()
	w := newTestWorld(t)

	err := w.RunWorkload(context.Background(), "missing")
	assert.True(t, eris.Is(err, ErrWorkloadNotFound))

	err = w.SetDefaultWorkload("missing")
	assert.True(t, eris.Is(err, ErrWorkloadNotFound))

	err = w.RunDefaultWorkload(context.Background())
	assert.True(t, eris.Is(err, ErrWorkloadNotFound))
}

func TestWorld_DefaultWorkload(t *testing.T) {
	t.Parallel()
	w := newTestWorld(t)

	var first, second atomic.Int32
	require.NoError(t, w.AddWorkload("first",
		System{Name: "s", Run: func(*Views) error { first.Add(1); return nil }},
	))

	// The first registered workload is the default.
	require.NoError(t, w.RunDefaultWorkload(context.Background()))
	assert.Equal(t, int32(1), first.Load())

	// Registering more workloads does not move the default.
	require.NoError(t, w.AddWorkload("second",
		System{Name: "s", Run: func(*Views) error { second.Add(1); return nil }},
	))
	require.NoError(t, w.RunDefaultWorkload(context.Background()))
	assert.Equal(t, int32(2), first.Load())
	assert.Equal(t, int32(0), second.Load())

	require.NoError(t, w.SetDefaultWorkload("second"))
	require.NoError(t, w.RunDefaultWorkload(context.Background()))
	assert.Equal(t, int32(2), first.Load())
	assert.Equal(t, int32(1), second.Load())
}

func TestWorld_AddWorkloadReplaces(t *testing.T) {
	t.Parallel()
	w := newTestWorld(t)

	var old, replacement atomic.Int32
	require.NoError(t, w.AddWorkload("tick",
		System{Name: "s", Run: func(*Views) error { old.Add(1); return nil }},
	))
	require.NoError(t, w.AddWorkload("tick",
		System{Name: "s", Run: func(*Views) error { replacement.Add(1); return nil }},
	))

	require.NoError(t, w.RunWorkload(context.Background(), "tick"))
	assert.Equal(t, int32(0), old.Load())
	assert.Equal(t, int32(1), replacement.Load())
}

func TestWorld_AdHocRunConflictsFailFast(t *testing.T) {
	t.Parallel()
	w := newTestWorld(t)

	var pos testutils.Position

	holding := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- w.Run(NewAccess().Writes(pos), func(*Views) error {
			close(holding)
			<-release
			return nil
		})
	}()

	<-holding

	// A second writer is refused immediately instead of waiting.
	err := w.Run(NewAccess().Writes(pos), func(*Views) error { return nil })
	assert.True(t, eris.Is(err, ErrBorrowConflict))

	// A reader is refused too while the exclusive checkout is held.
	err = w.Run(NewAccess().Reads(pos), func(*Views) error { return nil })
	assert.True(t, eris.Is(err, ErrBorrowConflict))

	close(release)
	require.NoError(t, <-done)

	// Once released, the storage is available again.
	err = w.Run(NewAccess().Writes(pos), func(*Views) error { return nil })
	assert.NoError(t, err)
}

func TestWorld_StrictStorages(t *testing.T) {
	t.Parallel()
	w := newTestWorld(t, WithStrictStorages())

	var pos testutils.Position
	err := w.Run(NewAccess().Reads(pos), func(*Views) error { return nil })
	assert.True(t, eris.Is(err, ErrStorageNotFound))

	require.NoError(t, Register[testutils.Position](w))
	err = w.Run(NewAccess().Reads(pos), func(*Views) error { return nil })
	assert.NoError(t, err)
}

func TestWorld_CreateAndDeleteEntity(t *testing.T) {
	t.Parallel()
	w := newTestWorld(t)

	e1, err := w.CreateEntity()
	require.NoError(t, err)
	assert.Equal(t, 1, w.EntityCount())

	deleted, err := w.DeleteEntity(e1)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, 0, w.EntityCount())

	deleted, err = w.DeleteEntity(e1)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestWorld_StorageKinds(t *testing.T) {
	t.Parallel()
	w := newTestWorld(t)

	assert.Empty(t, w.StorageKinds())

	var pos testutils.Position
	var vel testutils.Velocity
	err := w.Run(NewAccess().Writes(vel, pos), func(vs *Views) error {
		if _, err := Mut[testutils.Velocity](vs); err != nil {
			return err
		}
		_, err := Mut[testutils.Position](vs)
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"position", "velocity"}, w.StorageKinds())
}

func TestConfig_Options(t *testing.T) {
	t.Parallel()

	w := newTestWorld(t, WithWorkers(2), WithSequential(), WithLogLevel("warn"))
	assert.Equal(t, 2, w.cfg.Workers)
	assert.True(t, w.cfg.Sequential)
	assert.Equal(t, "warn", w.cfg.LogLevel)

	_, err := NewWorld(WithLogLevel("nonsense"))
	assert.Error(t, err)
}

func TestWorld_WithLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := newTestWorld(t, WithLogger(zerolog.New(&buf)), WithLogLevel("debug"))
	require.NoError(t, w.AddWorkload("tick",
		System{Name: "s", Run: func(*Views) error { return nil }},
	))
	assert.Contains(t, buf.String(), "compiled workload")

	// Without an injected logger the world logs nothing.
	quiet := newTestWorld(t, WithLogLevel("debug"))
	assert.Equal(t, zerolog.Disabled, quiet.log.GetLevel())
}

func TestConfig_Env(t *testing.T) {
	t.Setenv("SHIPYARD_WORKERS", "3")
	t.Setenv("SHIPYARD_SEQUENTIAL", "true")
	t.Setenv("SHIPYARD_STRICT_STORAGES", "true")

	w, err := NewWorld()
	require.NoError(t, err)
	assert.Equal(t, 3, w.cfg.Workers)
	assert.True(t, w.cfg.Sequential)
	assert.True(t, w.cfg.StrictStorages)
}
