package memdev

import (
	"github.com/pkg/errors"

	"github.com/outofforest/norfs/blocks"
)

var _ blocks.Medium = &MemDev{}

// MemDev simulates NOR flash in memory.
type MemDev struct {
	geometry blocks.Geometry
	data     []byte
}

// New returns new erased memdev with bit write granularity.
func New(blockSize, blockCount int) *MemDev {
	return NewWithGeometry(blocks.Geometry{
		BlockSize:   blockSize,
		BlockCount:  blockCount,
		Granularity: blocks.GranularityBit,
	})
}

// NewWithGeometry returns new erased memdev of the geometry.
func NewWithGeometry(geometry blocks.Geometry) *MemDev {
	md := &MemDev{
		geometry: geometry,
		data:     make([]byte, geometry.BlockSize*geometry.BlockCount),
	}
	fill(md.data)
	return md
}

// Geometry returns geometry of the device.
func (md *MemDev) Geometry() blocks.Geometry {
	return md.geometry
}

// Erase sets all the bits of the block.
func (md *MemDev) Erase(block int) error {
	if block < 0 || block >= md.geometry.BlockCount {
		return errors.Errorf("invalid block: %d", block)
	}
	offset := block * md.geometry.BlockSize
	fill(md.data[offset : offset+md.geometry.BlockSize])
	return nil
}

// Read reads data from the block.
func (md *MemDev) Read(block, offset int, p []byte) error {
	start, err := md.offset(block, offset, len(p))
	if err != nil {
		return err
	}
	copy(p, md.data[start:])
	return nil
}

// Write clears bits which are cleared in p.
func (md *MemDev) Write(block, offset int, p []byte) error {
	start, err := md.offset(block, offset, len(p))
	if err != nil {
		return err
	}
	dst := md.data[start : start+len(p)]
	for i, b := range p {
		dst[i] &= b
	}
	return nil
}

// Bytes returns the raw content of the block.
func (md *MemDev) Bytes(block int) []byte {
	offset := block * md.geometry.BlockSize
	return md.data[offset : offset+md.geometry.BlockSize]
}

func (md *MemDev) offset(block, offset, n int) (int, error) {
	if block < 0 || block >= md.geometry.BlockCount {
		return 0, errors.Errorf("invalid block: %d", block)
	}
	if offset < 0 || offset+n > md.geometry.BlockSize {
		return 0, errors.Errorf("invalid range: offset %d, length %d, block size %d", offset, n,
			md.geometry.BlockSize)
	}
	return block*md.geometry.BlockSize + offset, nil
}

func fill(p []byte) {
	for i := range p {
		p[i] = 0xFF
	}
}
