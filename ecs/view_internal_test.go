package ecs

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eldyer/shipyard/internal/testutils"
)

func newTestWorld(t *testing.T, opts ...Option) *World {
	t.Helper()
	w, err := NewWorld(opts...)
	require.NoError(t, err)
	return w
}

func TestViews_TypedAccessors(t *testing.T) {
	t.Parallel()
	w := newTestWorld(t)

	e1, err := w.CreateEntity()
	require.NoError(t, err)

	var pos testutils.Position
	err = w.Run(NewAccess().Writes(pos).ReadsEntities(), func(vs *Views) error {
		posMut, err := Mut[testutils.Position](vs)
		require.NoError(t, err)
		require.True(t, posMut.Insert(e1, testutils.Position{X: 3}))

		got, ok := posMut.Get(e1)
		require.True(t, ok)
		assert.Equal(t, 3.0, got.X)

		ref, ok := posMut.Ref(e1)
		require.True(t, ok)
		ref.X = 7

		// A written kind is readable through the shared accessor too.
		posView, err := Shared[testutils.Position](vs)
		require.NoError(t, err)
		got, ok = posView.Get(e1)
		require.True(t, ok)
		assert.Equal(t, 7.0, got.X)
		return nil
	})
	require.NoError(t, err)
}

func TestViews_UndeclaredAccessIsRejected(t *testing.T) {
	t.Parallel()
	w := newTestWorld(t)

	var pos testutils.Position
	err := w.Run(NewAccess().Reads(pos), func(vs *Views) error {
		// Exclusive access to a kind declared read-only.
		_, err := Mut[testutils.Position](vs)
		assert.True(t, eris.Is(err, ErrUndeclaredAccess))

		// A kind that was never declared at all.
		_, err = Shared[testutils.Velocity](vs)
		assert.True(t, eris.Is(err, ErrUndeclaredAccess))

		// Entity registry views without a declared entities mode.
		_, err = vs.Entities()
		assert.True(t, eris.Is(err, ErrUndeclaredAccess))
		_, err = vs.EntitiesMut()
		assert.True(t, eris.Is(err, ErrUndeclaredAccess))

		// Entity deletion without the registry-wide marker.
		_, err = vs.DeleteEntity(EntityID{})
		assert.True(t, eris.Is(err, ErrUndeclaredAccess))
		return nil
	})
	require.NoError(t, err)
}

func TestViews_InsertForDeadEntityIsRejected(t *testing.T) {
	t.Parallel()
	w := newTestWorld(t)

	e1, err := w.CreateEntity()
	require.NoError(t, err)
	deleted, err := w.DeleteEntity(e1)
	require.NoError(t, err)
	require.True(t, deleted)

	var pos testutils.Position
	err = w.Run(NewAccess().Writes(pos), func(vs *Views) error {
		posMut, err := Mut[testutils.Position](vs)
		require.NoError(t, err)

		// Rejected with no effect, not an error.
		assert.False(t, posMut.Insert(e1, testutils.Position{X: 1}))
		assert.Equal(t, 0, posMut.Len())
		return nil
	})
	require.NoError(t, err)
}

func TestViews_DeleteEntitySweepsAllStorages(t *testing.T) {
	t.Parallel()
	w := newTestWorld(t)

	var e1, e2 EntityID
	err := w.Run(NewAccess().AllStorages(), func(vs *Views) error {
		ents, err := vs.EntitiesMut()
		require.NoError(t, err)
		e1, e2 = ents.Create(), ents.Create()

		posMut, err := Mut[testutils.Position](vs)
		require.NoError(t, err)
		hpMut, err := Mut[testutils.Health](vs)
		require.NoError(t, err)
		posMut.Insert(e1, testutils.Position{X: 1})
		posMut.Insert(e2, testutils.Position{X: 2})
		hpMut.Insert(e1, testutils.Health{HP: 9})

		deleted, err := vs.DeleteEntity(e1)
		require.NoError(t, err)
		require.True(t, deleted)

		// Deleting again is a no-op.
		deleted, err = vs.DeleteEntity(e1)
		require.NoError(t, err)
		assert.False(t, deleted)

		assert.False(t, posMut.Contains(e1))
		assert.False(t, hpMut.Contains(e1))
		assert.True(t, posMut.Contains(e2))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, w.EntityCount())
}

func TestViews_Uniques(t *testing.T) {
	t.Parallel()
	w := newTestWorld(t)

	var clock testutils.FrameClock

	// Reading before any value was added fails.
	err := w.Run(NewAccess().Reads(clock), func(vs *Views) error {
		view, err := Unique[testutils.FrameClock](vs)
		require.NoError(t, err)
		_, err = view.Get()
		assert.True(t, eris.Is(err, ErrMissingUnique))
		return nil
	})
	require.NoError(t, err)

	// Set before Add fails too: presence transitions are structural.
	err = w.Run(NewAccess().Writes(clock), func(vs *Views) error {
		mut, err := UniqueMut[testutils.FrameClock](vs)
		require.NoError(t, err)
		err = mut.Set(testutils.FrameClock{Tick: 1})
		assert.True(t, eris.Is(err, ErrMissingUnique))

		// As does AddUnique without the registry-wide marker.
		err = AddUnique(vs, testutils.FrameClock{Tick: 1})
		assert.True(t, eris.Is(err, ErrUndeclaredAccess))
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, SetUnique(w, testutils.FrameClock{Tick: 10}))

	err = w.Run(NewAccess().Writes(clock), func(vs *Views) error {
		mut, err := UniqueMut[testutils.FrameClock](vs)
		require.NoError(t, err)

		got, err := mut.Get()
		require.NoError(t, err)
		assert.Equal(t, uint64(10), got.Tick)

		require.NoError(t, mut.Set(testutils.FrameClock{Tick: 11}))
		got, err = mut.Get()
		require.NoError(t, err)
		assert.Equal(t, uint64(11), got.Tick)
		return nil
	})
	require.NoError(t, err)

	taken, err := TakeUnique[testutils.FrameClock](w)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), taken.Tick)

	_, err = TakeUnique[testutils.FrameClock](w)
	assert.True(t, eris.Is(err, ErrMissingUnique))
}
