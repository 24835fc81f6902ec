package blocks

import (
	"github.com/pkg/errors"
)

// HeaderSize is the size of the block header preceding the object area of each block.
const HeaderSize = 8

// PayloadSizeBytes is the size of the payload size field stored in object header.
const PayloadSizeBytes = 4

// UnknownPayloadSize is the value of payload size field before the size is committed.
const UnknownPayloadSize uint32 = 0xFFFFFFFF

// WriteGranularity is the smallest unit the medium is able to address when writing.
// Zero means single bits may be cleared, otherwise it is the width of the word in bytes.
type WriteGranularity int

// Write granularities.
const (
	GranularityBit WriteGranularity = 0
)

// Word returns word granularity of n bytes.
func Word(n int) WriteGranularity {
	return WriteGranularity(n)
}

// IsWord returns true if writes must be done in whole words.
func (g WriteGranularity) IsWord() bool {
	return g != GranularityBit
}

// Width returns the number of bytes written at once. Bit granularity is treated as a single byte.
func (g WriteGranularity) Width() int {
	if g == GranularityBit {
		return 1
	}
	return int(g)
}

func (g WriteGranularity) code() uint32 {
	switch g {
	case Word(2):
		return 1
	case Word(4):
		return 2
	case Word(8):
		return 3
	default:
		return 0
	}
}

func (g WriteGranularity) String() string {
	switch g {
	case GranularityBit:
		return "bit"
	case Word(2):
		return "word2"
	case Word(4):
		return "word4"
	case Word(8):
		return "word8"
	default:
		return "invalid"
	}
}

// ParseGranularity parses the value produced by WriteGranularity.String.
func ParseGranularity(s string) (WriteGranularity, error) {
	for _, g := range []WriteGranularity{GranularityBit, Word(2), Word(4), Word(8)} {
		if g.String() == s {
			return g, nil
		}
	}
	return 0, errors.Wrapf(ErrInvalidGeometry, "unknown write granularity %q", s)
}

// Geometry describes the layout of the medium.
type Geometry struct {
	BlockSize   int
	BlockCount  int
	Granularity WriteGranularity
}

// Validate verifies that storage may be built on top of the medium.
func (g Geometry) Validate() error {
	switch g.Granularity {
	case GranularityBit, Word(2), Word(4), Word(8):
	default:
		return errors.Wrapf(ErrInvalidGeometry, "unsupported write granularity: %d", g.Granularity)
	}
	if g.BlockCount < 1 || int64(g.BlockCount) > 0xFFFFFFFF {
		return errors.Wrapf(ErrInvalidGeometry, "invalid block count: %d", g.BlockCount)
	}
	if int64(g.BlockSize) > 0xFFFFFFFF || g.BlockSize%g.Granularity.Width() != 0 {
		return errors.Wrapf(ErrInvalidGeometry, "invalid block size: %d", g.BlockSize)
	}
	if g.ObjectAreaSize() < 2*g.ObjectHeaderBytes() {
		return errors.Wrapf(ErrInvalidGeometry, "block size %d is too small, minimum: %d", g.BlockSize,
			HeaderSize+2*g.ObjectHeaderBytes())
	}
	return nil
}

// SizeToBytes returns the smallest number of bytes able to hold the size.
func SizeToBytes(size int) int {
	switch {
	case size <= 0xFF:
		return 1
	case size <= 0xFFFF:
		return 2
	case size <= 0xFFFFFF:
		return 3
	default:
		return 4
	}
}

// BlockSizeBytes returns number of bytes used to store in-block offset.
func (g Geometry) BlockSizeBytes() int {
	return SizeToBytes(g.BlockSize)
}

// BlockCountBytes returns number of bytes used to store block index.
func (g Geometry) BlockCountBytes() int {
	return SizeToBytes(g.BlockCount)
}

// ObjectStateBytes returns the size of the object state field.
func (g Geometry) ObjectStateBytes() int {
	if g.Granularity.IsWord() {
		return 3 * g.Granularity.Width()
	}
	return 1
}

// ObjectHeaderBytes returns the size of the object header.
func (g Geometry) ObjectHeaderBytes() int {
	return g.Align(g.ObjectStateBytes()) + g.Align(PayloadSizeBytes)
}

// ObjectLocationBytes returns the size of serialized object location.
func (g Geometry) ObjectLocationBytes() int {
	return g.BlockCountBytes() + g.BlockSizeBytes()
}

// ObjectAreaSize returns the number of bytes available for objects in each block.
func (g Geometry) ObjectAreaSize() int {
	return g.BlockSize - HeaderSize
}

// Align rounds size up to the write granularity.
func (g Geometry) Align(size int) int {
	w := g.Granularity.Width()
	if r := size % w; r != 0 {
		return size + w - r
	}
	return size
}

// BlockType is the enum representing the kind of objects stored in the block.
type BlockType byte

// Block types. Metadata and Data are bit subsets of Undefined, so formatted block may be typed later
// without erasing it.
const (
	UndefinedBlockType BlockType = 0xFF
	MetadataBlockType  BlockType = 0x55
	DataBlockType      BlockType = 0xAA
)

func (t BlockType) String() string {
	switch t {
	case UndefinedBlockType:
		return "undefined"
	case MetadataBlockType:
		return "metadata"
	case DataBlockType:
		return "data"
	default:
		return "invalid"
	}
}

// HeaderKind is the kind of block header found on the medium.
type HeaderKind byte

// Header kinds.
const (
	EmptyHeaderKind HeaderKind = iota
	UnknownHeaderKind
	KnownHeaderKind
)

func (k HeaderKind) String() string {
	switch k {
	case EmptyHeaderKind:
		return "empty"
	case KnownHeaderKind:
		return "known"
	default:
		return "unknown"
	}
}
