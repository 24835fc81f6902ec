package norfs

import (
	"github.com/outofforest/norfs/blocks"
)

// BlockStats describes the state of the block.
type BlockStats struct {
	Block      int
	Kind       blocks.HeaderKind
	Type       blocks.BlockType
	EraseCount uint32
	UsedBytes  int
	FreeBytes  int
	AllowAlloc bool
	Unusable   bool
}

// Stats returns the state of all the blocks.
func (s *Storage) Stats() []BlockStats {
	geometry := s.store.Geometry()
	stats := make([]BlockStats, 0, len(s.infos))
	for block, info := range s.infos {
		bs := BlockStats{
			Block:      block,
			Kind:       info.Header.Kind,
			Type:       info.Header.Type,
			UsedBytes:  info.UsedBytes,
			FreeBytes:  info.FreeBytes(geometry),
			AllowAlloc: info.AllowAlloc,
			Unusable:   info.Unusable,
		}
		if info.Header.IsKnown() {
			bs.EraseCount = info.Header.EraseCount
		}
		stats = append(stats, bs)
	}
	return stats
}

// Geometry returns geometry of the medium.
func (s *Storage) Geometry() blocks.Geometry {
	return s.store.Geometry()
}
