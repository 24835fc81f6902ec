package spacestore

import (
	"github.com/pkg/errors"

	"github.com/outofforest/norfs/blocks"
	"github.com/outofforest/norfs/objectstore"
	"github.com/outofforest/norfs/persistence"
)

// Space decides where new objects are placed.
type Space struct {
	store    *persistence.Store
	geometry blocks.Geometry
	infos    []persistence.BlockInfo
}

// New returns new space allocator operating on block states built on mount.
func New(store *persistence.Store, infos []persistence.BlockInfo) *Space {
	return &Space{
		store:    store,
		geometry: store.Geometry(),
		infos:    infos,
	}
}

// Allocate returns location for new object placed in block of type t, together with the number of payload bytes
// which fit there. Object is placed in block of the same type if whole payload fits, then in a block not assigned
// to any type yet, and finally in block of the same type where at least minPayload bytes fit.
func (s *Space) Allocate(t blocks.BlockType, minPayload, payload int) (objectstore.Location, int, error) {
	if minPayload > s.capacity(0) {
		return objectstore.Location{}, 0, errors.Wrapf(blocks.ErrObjectTooLarge, "%d bytes requested, block holds %d",
			minPayload, s.capacity(0))
	}

	if block, ok := s.findTyped(t, payload); ok {
		return s.location(block)
	}

	block, ok, err := s.claimFree(t)
	if err != nil {
		return objectstore.Location{}, 0, err
	}
	if ok {
		return s.location(block)
	}

	if block, ok := s.findTyped(t, minPayload); ok {
		return s.location(block)
	}

	return objectstore.Location{}, 0, errors.Wrapf(blocks.ErrStorageFull, "no space for %s object of %d bytes",
		t, minPayload)
}

// Commit records that object at location occupies size bytes.
func (s *Space) Commit(l objectstore.Location, size int) {
	info := &s.infos[l.Block]
	if end := l.Offset + size; end > info.UsedBytes {
		info.UsedBytes = end
	}
}

// Fail excludes the block from allocation after failed write left its content unknown.
// Block is treated as full until it is collected or scanned again.
func (s *Space) Fail(block int) {
	s.infos[block].AllowAlloc = false
	s.infos[block].UsedBytes = s.geometry.ObjectAreaSize()
}

// FreeBytes returns the number of bytes available for new objects across all the blocks.
func (s *Space) FreeBytes() int {
	var free int
	for _, info := range s.infos {
		if info.Unusable || (info.Header.IsKnown() && !info.AllowAlloc) {
			continue
		}
		free += info.FreeBytes(s.geometry)
	}
	return free
}

func (s *Space) findTyped(t blocks.BlockType, payload int) (int, bool) {
	selected := -1
	var selectedCapacity int
	for block, info := range s.infos {
		if !info.AllowAlloc || info.Unusable || !info.Header.IsKnown() || info.Header.Type != t {
			continue
		}
		capacity := s.capacity(info.UsedBytes)
		if capacity < payload || capacity <= 0 {
			continue
		}
		if selected < 0 || capacity > selectedCapacity {
			selected = block
			selectedCapacity = capacity
		}
	}
	return selected, selected >= 0
}

// claimFree assigns the type to the block not used yet. Formatted blocks with the lowest erase count are preferred
// over blocks which have to be formatted first.
func (s *Space) claimFree(t blocks.BlockType) (int, bool, error) {
	selected := -1
	for block, info := range s.infos {
		if !info.AllowAlloc || info.Unusable || !info.Header.IsKnown() ||
			info.Header.Type != blocks.UndefinedBlockType {
			continue
		}
		if selected < 0 || info.Header.EraseCount < s.infos[selected].Header.EraseCount {
			selected = block
		}
	}

	if selected < 0 {
		for block, info := range s.infos {
			if info.Unusable || !info.Header.IsEmpty() {
				continue
			}
			header, err := s.store.FormatBlock(block)
			if err != nil {
				if errors.Is(err, blocks.ErrBlockUnusable) {
					s.infos[block].Unusable = true
					continue
				}
				return 0, false, err
			}
			s.infos[block].Formatted(header)
			selected = block
			break
		}
	}

	if selected < 0 {
		return 0, false, nil
	}

	if err := s.store.SetBlockType(selected, t); err != nil {
		s.Fail(selected)
		return 0, false, err
	}
	s.infos[selected].Header.Type = t
	return selected, true, nil
}

func (s *Space) location(block int) (objectstore.Location, int, error) {
	info := s.infos[block]
	return objectstore.Location{Block: block, Offset: info.UsedBytes}, s.capacity(info.UsedBytes), nil
}

func (s *Space) capacity(used int) int {
	return s.geometry.ObjectAreaSize() - used - s.geometry.ObjectHeaderBytes()
}
