package ecs

import (
	"fmt"

	"github.com/rotisserie/eris"
)

var (
	// ErrBorrowConflict is returned when a requested checkout collides with an outstanding one.
	// It is always surfaced to the caller, never silently granted.
	ErrBorrowConflict = eris.New("storage is already borrowed")

	// ErrStorageNotFound is returned in strict mode when an access set names a storage kind
	// that was never registered. With implicit creation enabled it cannot occur.
	ErrStorageNotFound = eris.New("no storage exists for this kind")

	// ErrWorkloadNotFound is returned when running or defaulting to an unregistered workload name.
	ErrWorkloadNotFound = eris.New("no workload with this name exists")

	// ErrUndeclaredAccess is returned when a system requests a view it did not declare.
	ErrUndeclaredAccess = eris.New("access was not declared for this storage kind")

	// ErrMissingUnique is returned when a unique storage holds no value.
	ErrMissingUnique = eris.New("unique storage holds no value")

	// ErrNonUnique is returned when a storage kind is used both as a unique and as a
	// per-entity component storage.
	ErrNonUnique = eris.New("storage kind does not match unique/component usage")

	// ErrStaleEntity is returned by operations that require a live entity.
	// Most liveness mismatches are resolved locally as no-ops; this sentinel only surfaces
	// where an explicit answer is part of the contract (snapshot restore validation).
	ErrStaleEntity = eris.New("entity is not alive")

	// ErrSystemFailure wraps an error returned by a system body. The failing system's name
	// and the underlying cause are preserved in the chain.
	ErrSystemFailure = eris.New("system failed")
)

// systemError attributes a failure to the named system. The chain is linear so eris.Is
// resolves both ErrSystemFailure (via Is) and the underlying cause (via Unwrap).
func systemError(name string, err error) error {
	return &systemFailure{name: name, cause: err}
}

type systemFailure struct {
	name  string
	cause error
}

func (e *systemFailure) Error() string {
	return fmt.Sprintf("system %q failed: %s", e.name, e.cause)
}

func (e *systemFailure) Is(target error) bool { return target == ErrSystemFailure }

func (e *systemFailure) Unwrap() error { return e.cause }
