package ecs

import (
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBorrowState_SharedAndExclusive(t *testing.T) {
	t.Parallel()
	var b borrowState

	// Any number of shared checkouts coexist.
	require.True(t, b.tryShared())
	require.True(t, b.tryShared())

	// Exclusive is refused while shared checkouts are outstanding.
	assert.False(t, b.tryExclusive())

	b.releaseShared()
	assert.False(t, b.tryExclusive())
	b.releaseShared()

	// Free state grants exclusive; everything else is refused until release.
	require.True(t, b.tryExclusive())
	assert.False(t, b.tryShared())
	assert.False(t, b.tryExclusive())

	b.releaseExclusive()
	assert.True(t, b.tryShared())
}

func TestBorrowState_ConcurrentExclusive(t *testing.T) {
	t.Parallel()
	var b borrowState

	// Exactly one of N racing goroutines wins the exclusive checkout.
	const goroutines = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.tryExclusive() {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}

func TestConflictError_WrapsSentinel(t *testing.T) {
	t.Parallel()

	err := conflictError("position", true)
	assert.True(t, eris.Is(err, ErrBorrowConflict))
	assert.Contains(t, err.Error(), "position")

	err = conflictError("entities", false)
	assert.True(t, eris.Is(err, ErrBorrowConflict))
	assert.Contains(t, err.Error(), "entities")
}
