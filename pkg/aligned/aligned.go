package aligned

import (
	"unsafe"

	"github.com/ncw/directio"
	"github.com/pkg/errors"

	"github.com/outofforest/norfs/blocks"
)

// Device is a flash driver accepting only word-aligned offsets, lengths and buffers, page at a time.
type Device interface {
	Geometry() blocks.Geometry
	WordSize() int
	PageSize() int
	Erase(block int) error
	ReadAligned(block, offset int, p []byte) error
	WriteAligned(block, offset int, p []byte) error
}

var _ blocks.Medium = &Medium{}

// Medium exposes aligned device as medium accepting arbitrary accesses.
type Medium struct {
	dev      Device
	geometry blocks.Geometry
	wordSize int
	pageSize int
	scratch  []byte
}

// New returns new aligned medium.
func New(dev Device) (*Medium, error) {
	geometry := dev.Geometry()
	wordSize := dev.WordSize()
	pageSize := dev.PageSize()
	if wordSize <= 0 || wordSize&(wordSize-1) != 0 {
		return nil, errors.Errorf("invalid word size: %d", wordSize)
	}
	if pageSize < wordSize || pageSize%wordSize != 0 || geometry.BlockSize%pageSize != 0 {
		return nil, errors.Errorf("invalid page size: %d", pageSize)
	}

	return &Medium{
		dev:      dev,
		geometry: geometry,
		wordSize: wordSize,
		pageSize: pageSize,
		scratch:  directio.AlignedBlock(pageSize),
	}, nil
}

// Geometry returns geometry of the device.
func (m *Medium) Geometry() blocks.Geometry {
	return m.geometry
}

// Erase erases the block.
func (m *Medium) Erase(block int) error {
	return m.dev.Erase(block)
}

// Read reads data starting at any offset into any buffer.
func (m *Medium) Read(block, offset int, p []byte) error {
	if err := m.checkRange(offset, len(p)); err != nil {
		return err
	}

	for len(p) > 0 {
		if n := m.directLength(offset, p); n > 0 {
			if err := m.dev.ReadAligned(block, offset, p[:n]); err != nil {
				return err
			}
			offset += n
			p = p[n:]
			continue
		}

		start, end, alignedEnd := m.window(offset, len(p))
		if err := m.dev.ReadAligned(block, start, m.scratch[:alignedEnd-start]); err != nil {
			return err
		}
		n := copy(p, m.scratch[offset-start:end-start])
		offset += n
		p = p[n:]
	}
	return nil
}

// Write writes data starting at any offset from any buffer.
// Bytes around the data are padded with ones so they are not affected.
func (m *Medium) Write(block, offset int, p []byte) error {
	if err := m.checkRange(offset, len(p)); err != nil {
		return err
	}

	for len(p) > 0 {
		if n := m.directLength(offset, p); n > 0 {
			if err := m.dev.WriteAligned(block, offset, p[:n]); err != nil {
				return err
			}
			offset += n
			p = p[n:]
			continue
		}

		start, end, alignedEnd := m.window(offset, len(p))
		scratch := m.scratch[:alignedEnd-start]
		for i := range scratch {
			scratch[i] = 0xFF
		}
		n := copy(scratch[offset-start:end-start], p)
		if err := m.dev.WriteAligned(block, start, scratch); err != nil {
			return err
		}
		offset += n
		p = p[n:]
	}
	return nil
}

func (m *Medium) checkRange(offset, n int) error {
	if offset < 0 || n < 0 || offset+n > m.geometry.BlockSize {
		return errors.Errorf("invalid range: offset %d, length %d, block size %d", offset, n,
			m.geometry.BlockSize)
	}
	return nil
}

// directLength returns the number of bytes which might be transferred without scratch buffer.
func (m *Medium) directLength(offset int, p []byte) int {
	if offset%m.wordSize != 0 || len(p) < m.wordSize || uintptr(unsafe.Pointer(&p[0]))%uintptr(m.wordSize) != 0 {
		return 0
	}
	n := len(p) - len(p)%m.wordSize
	if pageEnd := (offset/m.pageSize + 1) * m.pageSize; offset+n > pageEnd {
		n = pageEnd - offset
	}
	return n
}

// window returns the aligned range of the page covering the beginning of the access.
func (m *Medium) window(offset, n int) (start, end, alignedEnd int) {
	start = offset - offset%m.wordSize
	end = offset + n
	if pageEnd := (start/m.pageSize + 1) * m.pageSize; end > pageEnd {
		end = pageEnd
	}
	alignedEnd = (end + m.wordSize - 1) / m.wordSize * m.wordSize
	return start, end, alignedEnd
}
