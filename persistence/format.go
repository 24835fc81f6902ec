package persistence

import (
	"math"

	"github.com/pkg/errors"

	"github.com/outofforest/norfs/blocks"
)

// FormatBlock prepares the block for new objects and returns its new header.
// Block which has never been written is not erased. Formatted block with empty object area is left untouched.
// Otherwise block is erased and its erase count is incremented.
func (s *Store) FormatBlock(block int) (blocks.Header, error) {
	header, err := s.ReadHeader(block)
	if err != nil {
		return blocks.Header{}, err
	}

	var eraseCount uint32
	erase := true
	switch header.Kind {
	case blocks.EmptyHeaderKind:
		empty, err := s.IsBlockDataEmpty(block)
		if err != nil {
			return blocks.Header{}, err
		}
		erase = !empty
	case blocks.KnownHeaderKind:
		if header.Type == blocks.UndefinedBlockType {
			empty, err := s.IsBlockDataEmpty(block)
			if err != nil {
				return blocks.Header{}, err
			}
			if empty {
				return header, nil
			}
		}
		if header.EraseCount == math.MaxUint32 {
			return blocks.Header{}, errors.Wrapf(blocks.ErrBlockUnusable, "block %d", block)
		}
		eraseCount = header.EraseCount + 1
	}

	if erase {
		if err := s.medium.Erase(block); err != nil {
			return blocks.Header{}, ioError("erase", block, err)
		}
	}

	if err := s.medium.Write(block, 0, s.geometry.EncodeHeader(blocks.UndefinedBlockType, eraseCount)); err != nil {
		return blocks.Header{}, ioError("write", block, err)
	}

	return blocks.Header{
		Kind:       blocks.KnownHeaderKind,
		Type:       blocks.UndefinedBlockType,
		EraseCount: eraseCount,
	}, nil
}

// FormatStorage formats all the blocks. Blocks which can't be erased anymore are skipped and returned.
func (s *Store) FormatStorage() ([]int, error) {
	var unusable []int
	for block := range s.geometry.BlockCount {
		if _, err := s.FormatBlock(block); err != nil {
			if errors.Is(err, blocks.ErrBlockUnusable) {
				unusable = append(unusable, block)
				continue
			}
			return nil, err
		}
	}
	if len(unusable) == s.geometry.BlockCount {
		return unusable, errors.Wrap(blocks.ErrStorageFull, "no usable block left")
	}
	return unusable, nil
}
