package blocks

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrIO is matched by errors returned by media when the underlying device fails.
	ErrIO = errors.New("medium i/o failure")

	// ErrFsCorrupted is returned when structural invariant of the storage is violated.
	ErrFsCorrupted = errors.New("storage is corrupted")

	// ErrNotFormatted is returned by mount if no block carries a valid header.
	ErrNotFormatted = errors.New("storage is not formatted")

	// ErrBlockUnusable is returned when block can't be erased anymore because its erase count would overflow.
	ErrBlockUnusable = errors.New("block is unusable")

	// ErrNotFound is returned when there is no object stored under the path.
	ErrNotFound = errors.New("object not found")

	// ErrStorageFull is returned when there is no space left for new object.
	ErrStorageFull = errors.New("storage is full")

	// ErrObjectTooLarge is returned when object does not fit into a single block.
	ErrObjectTooLarge = errors.New("object is too large")

	// ErrInvalidState is returned on object state transition not allowed by the state chain.
	ErrInvalidState = errors.New("invalid object state transition")

	// ErrInvalidGeometry is returned when geometry of the medium can't host the storage.
	ErrInvalidGeometry = errors.New("invalid medium geometry")
)

// IOError wraps the error reported by the device.
type IOError struct {
	Op    string
	Block int
	Err   error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s block %d: %s", e.Op, e.Block, e.Err)
}

// Unwrap returns the device error.
func (e *IOError) Unwrap() error {
	return e.Err
}

// Is makes IOError match ErrIO.
func (e *IOError) Is(target error) bool {
	return target == ErrIO
}
