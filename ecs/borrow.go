package ecs

import (
	"sync/atomic"

	"github.com/rotisserie/eris"

	"github.com/eldyer/shipyard/assert"
)

// borrowState is the access-control wrapper around a single storage: zero or more shared
// checkouts XOR exactly one exclusive checkout, tracked in one atomic counter (n > 0 counts
// shared holders, n == -1 marks the exclusive holder). Acquisition fails fast instead of
// blocking; within a scheduled batch a failure is impossible by construction, so a conflict
// only surfaces when an ad hoc run races other work.
type borrowState struct {
	n atomic.Int32
}

const exclusiveBorrow = -1

// tryShared registers a shared checkout unless an exclusive one is outstanding.
func (b *borrowState) tryShared() bool {
	for {
		cur := b.n.Load()
		if cur < 0 {
			return false
		}
		if b.n.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// tryExclusive registers the exclusive checkout if no checkout is outstanding.
func (b *borrowState) tryExclusive() bool {
	return b.n.CompareAndSwap(0, exclusiveBorrow)
}

func (b *borrowState) releaseShared() {
	n := b.n.Add(-1)
	assert.That(n >= 0, "released a shared checkout that was never taken")
}

func (b *borrowState) releaseExclusive() {
	ok := b.n.CompareAndSwap(exclusiveBorrow, 0)
	assert.That(ok, "released an exclusive checkout that was never taken")
}

// conflictError describes a failed checkout in terms of what was requested and on what.
func conflictError(name string, exclusive bool) error {
	if exclusive {
		return eris.Wrapf(ErrBorrowConflict, "cannot exclusively borrow %s while it is already borrowed", name)
	}
	return eris.Wrapf(ErrBorrowConflict, "cannot borrow %s while it is already exclusively borrowed", name)
}
