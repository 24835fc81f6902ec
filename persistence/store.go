package persistence

import (
	"github.com/pkg/errors"

	"github.com/outofforest/norfs/blocks"
)

// emptyScanChunk is the number of bytes checked at once while proving that the block is empty.
const emptyScanChunk = 64

// Store provides access to blocks of the medium, hiding block headers from the object area.
type Store struct {
	medium   blocks.Medium
	geometry blocks.Geometry
}

// New returns new store operating on the medium.
func New(medium blocks.Medium) (*Store, error) {
	geometry := medium.Geometry()
	if err := geometry.Validate(); err != nil {
		return nil, err
	}
	return &Store{
		medium:   medium,
		geometry: geometry,
	}, nil
}

// Geometry returns geometry of the medium.
func (s *Store) Geometry() blocks.Geometry {
	return s.geometry
}

// ReadHeader reads the header of the block.
func (s *Store) ReadHeader(block int) (blocks.Header, error) {
	b := make([]byte, blocks.HeaderSize)
	if err := s.medium.Read(block, 0, b); err != nil {
		return blocks.Header{}, ioError("read", block, err)
	}
	return s.geometry.DecodeHeader(b), nil
}

// IsBlockDataEmpty returns true if no byte of the object area has been written.
func (s *Store) IsBlockDataEmpty(block int) (bool, error) {
	return s.isEmpty(block, 0, s.geometry.ObjectAreaSize())
}

// IsRangeEmpty returns true if no byte of the range in the object area has been written.
func (s *Store) IsRangeEmpty(block, offset, n int) (bool, error) {
	return s.isEmpty(block, offset, n)
}

// LastWrittenByte returns the offset of the last written byte in the range of the object area, or -1.
func (s *Store) LastWrittenByte(block, offset, n int) (int, error) {
	buf := make([]byte, emptyScanChunk)
	for end := offset + n; end > offset; {
		start := max(end-emptyScanChunk, offset)
		chunk := buf[:end-start]
		if err := s.ReadData(block, start, chunk); err != nil {
			return 0, err
		}
		for i := len(chunk) - 1; i >= 0; i-- {
			if chunk[i] != 0xFF {
				return start + i, nil
			}
		}
		end = start
	}
	return -1, nil
}

// SetBlockType assigns type to the formatted block by clearing bits of its magic word.
// Erase count is written as all ones, which leaves it untouched.
func (s *Store) SetBlockType(block int, t blocks.BlockType) error {
	b := s.geometry.EncodeHeader(t, 0xFFFFFFFF)
	if err := s.medium.Write(block, 0, b[:s.geometry.Align(4)]); err != nil {
		return ioError("write", block, err)
	}
	return nil
}

// ReadData reads bytes from the object area of the block.
func (s *Store) ReadData(block, offset int, p []byte) error {
	if err := s.checkRange(block, offset, len(p)); err != nil {
		return err
	}
	if err := s.medium.Read(block, blocks.HeaderSize+offset, p); err != nil {
		return ioError("read", block, err)
	}
	return nil
}

// WriteData writes bytes to the object area of the block.
func (s *Store) WriteData(block, offset int, p []byte) error {
	if err := s.checkRange(block, offset, len(p)); err != nil {
		return err
	}
	if err := s.medium.Write(block, blocks.HeaderSize+offset, p); err != nil {
		return ioError("write", block, err)
	}
	return nil
}

func (s *Store) isEmpty(block, offset, n int) (bool, error) {
	last, err := s.LastWrittenByte(block, offset, n)
	if err != nil {
		return false, err
	}
	return last < 0, nil
}

func (s *Store) checkRange(block, offset, n int) error {
	if block < 0 || block >= s.geometry.BlockCount {
		return errors.Errorf("block %d does not exist", block)
	}
	if offset < 0 || offset+n > s.geometry.ObjectAreaSize() {
		return errors.Errorf("range [%d, %d) exceeds object area of block %d", offset, offset+n, block)
	}
	return nil
}

func ioError(op string, block int, err error) error {
	return errors.WithStack(&blocks.IOError{Op: op, Block: block, Err: err})
}
