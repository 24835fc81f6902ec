package persistence

import (
	"github.com/outofforest/norfs/blocks"
)

// BlockInfo is the in-memory state of the block rebuilt on mount.
type BlockInfo struct {
	Header blocks.Header

	// UsedBytes is the number of bytes of the object area occupied by objects.
	UsedBytes int

	// AllowAlloc is set once garbage collector proves new objects may be appended to the block.
	AllowAlloc bool

	// Unusable is set if the block can't be erased anymore.
	Unusable bool
}

// FreeBytes returns the number of bytes available for new objects.
func (bi BlockInfo) FreeBytes(geometry blocks.Geometry) int {
	return geometry.ObjectAreaSize() - bi.UsedBytes
}

// Formatted resets the state after block has been formatted.
func (bi *BlockInfo) Formatted(header blocks.Header) {
	*bi = BlockInfo{
		Header:     header,
		AllowAlloc: true,
	}
}
