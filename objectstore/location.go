package objectstore

import (
	"encoding/binary"
	"fmt"

	"github.com/outofforest/norfs/blocks"
)

// Location points to the object. Offset is counted from the beginning of the object area.
type Location struct {
	Block  int
	Offset int
}

func (l Location) String() string {
	return fmt.Sprintf("%d:%d", l.Block, l.Offset)
}

// AppendLocation appends location encoded using the minimal number of bytes for the geometry.
func AppendLocation(geometry blocks.Geometry, b []byte, l Location) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(l.Block))
	b = append(b, buf[:geometry.BlockCountBytes()]...)
	binary.LittleEndian.PutUint32(buf[:], uint32(l.Offset))
	return append(b, buf[:geometry.BlockSizeBytes()]...)
}

// AppendEndOfList appends the sentinel terminating the list of locations.
func AppendEndOfList(geometry blocks.Geometry, b []byte) []byte {
	for range geometry.ObjectLocationBytes() {
		b = append(b, 0xFF)
	}
	return b
}

// DecodeLocation decodes the location. False is returned for the sentinel terminating the list.
func DecodeLocation(geometry blocks.Geometry, b []byte) (Location, bool) {
	blockBytes := geometry.BlockCountBytes()
	sentinel := true
	for _, v := range b[:geometry.ObjectLocationBytes()] {
		if v != 0xFF {
			sentinel = false
			break
		}
	}
	if sentinel {
		return Location{}, false
	}

	var buf [4]byte
	copy(buf[:], b[:blockBytes])
	block := binary.LittleEndian.Uint32(buf[:])
	buf = [4]byte{}
	copy(buf[:], b[blockBytes:geometry.ObjectLocationBytes()])
	return Location{
		Block:  int(block),
		Offset: int(binary.LittleEndian.Uint32(buf[:])),
	}, true
}
