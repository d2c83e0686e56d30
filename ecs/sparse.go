package ecs

import "github.com/eldyer/shipyard/assert"

// sparseIndex maps entity slot indexes to dense rows of a storage. Missing keys hold a
// tombstone so lookups are a single bounds check plus compare.
type sparseIndex []int

const sparseCapacity = 128
const sparseTombstone = -1

// newSparseIndex creates a sparse index with initial capacity.
func newSparseIndex() sparseIndex {
	s := make(sparseIndex, sparseCapacity)
	for i := range sparseCapacity {
		s[i] = sparseTombstone
	}
	return s
}

// get returns the dense row for an entity index and whether it is present.
func (s *sparseIndex) get(key uint32) (int, bool) {
	if int(key) >= len(*s) {
		return 0, false
	}

	row := (*s)[key]
	if row == sparseTombstone {
		return 0, false
	}

	return row, true
}

// set stores a dense row for an entity index, growing the backing slice if needed.
func (s *sparseIndex) set(key uint32, row int) {
	assert.That(row >= 0, "row must be a non-negative dense index")

	if int(key) >= len(*s) { // Grow slice if needed
		// Grow by doubling or to key+1, whichever is larger.
		oldLen := len(*s)
		newLen := max(oldLen*2, int(key)+1)

		grown := make(sparseIndex, newLen)
		copy(grown, *s)
		for i := oldLen; i < newLen; i++ {
			grown[i] = sparseTombstone
		}
		*s = grown
	}

	(*s)[key] = row
}

// remove tombstones an entity index. Returns true if it was present.
func (s *sparseIndex) remove(key uint32) bool {
	if int(key) >= len(*s) {
		return false
	}

	if (*s)[key] == sparseTombstone {
		return false
	}

	(*s)[key] = sparseTombstone
	return true
}
