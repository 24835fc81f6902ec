package memdev

import (
	"encoding/binary"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/outofforest/norfs/blocks"
)

const wordSize = 4

// AlignedMemDev simulates NOR flash accepting only word-aligned accesses from word-aligned buffers,
// one page at a time.
type AlignedMemDev struct {
	geometry blocks.Geometry
	pageSize int
	words    []uint32
}

// NewAligned returns new erased aligned memdev.
func NewAligned(geometry blocks.Geometry, pageSize int) *AlignedMemDev {
	if geometry.BlockSize%pageSize != 0 || pageSize%wordSize != 0 {
		panic(errors.Errorf("invalid page size %d for block size %d", pageSize, geometry.BlockSize))
	}

	md := &AlignedMemDev{
		geometry: geometry,
		pageSize: pageSize,
		words:    make([]uint32, geometry.BlockSize*geometry.BlockCount/wordSize),
	}
	for i := range md.words {
		md.words[i] = 0xFFFFFFFF
	}
	return md
}

// Geometry returns geometry of the device.
func (md *AlignedMemDev) Geometry() blocks.Geometry {
	return md.geometry
}

// WordSize returns the required alignment of offsets, lengths and buffers.
func (md *AlignedMemDev) WordSize() int {
	return wordSize
}

// PageSize returns the maximum length of single access.
func (md *AlignedMemDev) PageSize() int {
	return md.pageSize
}

// Erase sets all the bits of the block.
func (md *AlignedMemDev) Erase(block int) error {
	if block < 0 || block >= md.geometry.BlockCount {
		return errors.Errorf("invalid block: %d", block)
	}
	start := block * md.geometry.BlockSize / wordSize
	for i := start; i < start+md.geometry.BlockSize/wordSize; i++ {
		md.words[i] = 0xFFFFFFFF
	}
	return nil
}

// ReadAligned reads words from the page.
func (md *AlignedMemDev) ReadAligned(block, offset int, p []byte) error {
	index, err := md.index(block, offset, p)
	if err != nil {
		return err
	}
	for i := 0; i < len(p); i += wordSize {
		binary.LittleEndian.PutUint32(p[i:], md.words[index+i/wordSize])
	}
	return nil
}

// WriteAligned clears bits of the words which are cleared in p.
func (md *AlignedMemDev) WriteAligned(block, offset int, p []byte) error {
	index, err := md.index(block, offset, p)
	if err != nil {
		return err
	}
	for i := 0; i < len(p); i += wordSize {
		md.words[index+i/wordSize] &= binary.LittleEndian.Uint32(p[i:])
	}
	return nil
}

func (md *AlignedMemDev) index(block, offset int, p []byte) (int, error) {
	switch {
	case block < 0 || block >= md.geometry.BlockCount:
		return 0, errors.Errorf("invalid block: %d", block)
	case offset%wordSize != 0:
		return 0, errors.Errorf("offset %d is not aligned", offset)
	case len(p)%wordSize != 0:
		return 0, errors.Errorf("length %d is not aligned", len(p))
	case len(p) > 0 && uintptr(unsafe.Pointer(&p[0]))%wordSize != 0:
		return 0, errors.New("buffer is not aligned")
	case offset < 0 || offset+len(p) > md.geometry.BlockSize:
		return 0, errors.Errorf("invalid range: offset %d, length %d", offset, len(p))
	case len(p) > 0 && offset/md.pageSize != (offset+len(p)-1)/md.pageSize:
		return 0, errors.Errorf("access crosses page boundary: offset %d, length %d", offset, len(p))
	}
	return (block*md.geometry.BlockSize + offset) / wordSize, nil
}
