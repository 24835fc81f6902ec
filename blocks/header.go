package blocks

import (
	"github.com/outofforest/photon"
)

const (
	fsVersion   = 0xBA01
	emptyMagic  = 0xFFFFFFFF
	emptyCount  = 0xFFFFFFFF
	typeMask    = 0xFF
	versionMask = 0xFFFFFF00
)

type rawHeader struct {
	Magic      uint32
	EraseCount uint32
}

// Header is the header stored at the beginning of each block.
type Header struct {
	Kind       HeaderKind
	Type       BlockType
	EraseCount uint32
}

// IsEmpty returns true if the header area is in erased state.
func (h Header) IsEmpty() bool {
	return h.Kind == EmptyHeaderKind
}

// IsKnown returns true if the block has been formatted for this geometry.
func (h Header) IsKnown() bool {
	return h.Kind == KnownHeaderKind
}

// Magic returns the magic word for the block type on this geometry.
func (g Geometry) Magic(t BlockType) uint32 {
	return fsVersion<<16 |
		uint32(g.BlockSizeBytes()-1)<<14 |
		uint32(g.BlockCountBytes()-1)<<10 |
		g.Granularity.code()<<8 |
		uint32(t)
}

// EncodeHeader returns bytes of the block header.
func (g Geometry) EncodeHeader(t BlockType, eraseCount uint32) []byte {
	return photon.NewFromValue(&rawHeader{
		Magic:      g.Magic(t),
		EraseCount: eraseCount,
	}).B
}

// DecodeHeader decodes block header read from the medium.
func (g Geometry) DecodeHeader(b []byte) Header {
	raw := photon.NewFromBytes[rawHeader](b[:HeaderSize])

	if raw.V.Magic == emptyMagic {
		if raw.V.EraseCount == emptyCount {
			return Header{Kind: EmptyHeaderKind, EraseCount: emptyCount}
		}
		return Header{Kind: UnknownHeaderKind, EraseCount: raw.V.EraseCount}
	}

	t, ok := decodeBlockType(byte(raw.V.Magic & typeMask))
	if !ok {
		return Header{Kind: UnknownHeaderKind, EraseCount: raw.V.EraseCount}
	}
	if raw.V.Magic&versionMask != g.Magic(t)&versionMask {
		return Header{Kind: UnknownHeaderKind, EraseCount: raw.V.EraseCount}
	}

	return Header{
		Kind:       KnownHeaderKind,
		Type:       t,
		EraseCount: raw.V.EraseCount,
	}
}

// decodeBlockType accepts the type byte of undefined block partially rewritten to one of the final types.
// Metadata and data patterns are disjoint, so interrupted assignment is never ambiguous.
func decodeBlockType(b byte) (BlockType, bool) {
	switch {
	case b == byte(UndefinedBlockType):
		return UndefinedBlockType, true
	case b&byte(DataBlockType) == byte(DataBlockType):
		return DataBlockType, true
	case b&byte(MetadataBlockType) == byte(MetadataBlockType):
		return MetadataBlockType, true
	default:
		return 0, false
	}
}
