package objectstore

import (
	"github.com/outofforest/norfs/blocks"
	"github.com/outofforest/norfs/persistence"
)

// ScanBlock rebuilds the in-memory state of the block from the medium.
func ScanBlock(store *persistence.Store, block int) (persistence.BlockInfo, error) {
	header, err := store.ReadHeader(block)
	if err != nil {
		return persistence.BlockInfo{}, err
	}

	info := persistence.BlockInfo{Header: header}
	switch header.Kind {
	case blocks.EmptyHeaderKind:
		return info, nil
	case blocks.UnknownHeaderKind:
		// Header write interrupted right after erase.
		empty, err := store.IsBlockDataEmpty(block)
		if err != nil {
			return persistence.BlockInfo{}, err
		}
		if empty {
			info.Header.Kind = blocks.EmptyHeaderKind
		}
		return info, nil
	}

	geometry := store.Geometry()
	it := NewIterator(store, block)
	var last Object
	for {
		o, ok, err := it.Next()
		if err != nil {
			return persistence.BlockInfo{}, err
		}
		if !ok {
			break
		}
		last = o
	}
	info.UsedBytes = it.Offset()

	if last.Header.State == AllocatedState && !last.Header.SizeKnown() {
		dataOffset := last.DataOffset(geometry)
		lastWritten, err := store.LastWrittenByte(block, dataOffset, geometry.ObjectAreaSize()-dataOffset)
		if err != nil {
			return persistence.BlockInfo{}, err
		}
		info.UsedBytes = dataOffset
		if lastWritten >= 0 {
			info.UsedBytes = geometry.Align(lastWritten + 1)
		}
	}

	return info, nil
}
