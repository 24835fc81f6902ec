package norfs

import (
	"github.com/outofforest/norfs/blocks"
)

// Errors returned by the storage. Use errors.Is to test for them.
var (
	ErrIO              = blocks.ErrIO
	ErrFsCorrupted     = blocks.ErrFsCorrupted
	ErrNotFormatted    = blocks.ErrNotFormatted
	ErrBlockUnusable   = blocks.ErrBlockUnusable
	ErrNotFound        = blocks.ErrNotFound
	ErrStorageFull     = blocks.ErrStorageFull
	ErrObjectTooLarge  = blocks.ErrObjectTooLarge
	ErrInvalidState    = blocks.ErrInvalidState
	ErrInvalidGeometry = blocks.ErrInvalidGeometry
)
