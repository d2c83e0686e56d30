package ecs

import (
	"errors"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestSystemError_Classification(t *testing.T) {
	t.Parallel()

	cause := eris.New("division by zero")
	err := systemError("physics", cause)

	// Both classification paths used across the module must resolve the sentinel and
	// the underlying cause.
	assert.True(t, eris.Is(err, ErrSystemFailure))
	assert.True(t, eris.Is(err, cause))
	assert.True(t, errors.Is(err, ErrSystemFailure))
	assert.True(t, errors.Is(err, cause))

	assert.Contains(t, err.Error(), "physics")
	assert.Contains(t, err.Error(), "division by zero")

	// A wrapped borrow conflict stays classifiable through the attribution layer.
	err = systemError("reader", conflictError("position", false))
	assert.True(t, eris.Is(err, ErrBorrowConflict))
	assert.False(t, eris.Is(err, ErrWorkloadNotFound))
}
