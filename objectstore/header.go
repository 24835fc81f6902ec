package objectstore

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/outofforest/norfs/blocks"
	"github.com/outofforest/norfs/persistence"
)

// Header is the header of the object.
type Header struct {
	State       State
	PayloadSize uint32
}

// SizeKnown returns true if payload size has been committed.
func (h Header) SizeKnown() bool {
	return h.PayloadSize != blocks.UnknownPayloadSize
}

// Object is the object found in the block.
type Object struct {
	Location Location
	Header   Header
}

// DataOffset returns the offset of the payload in the object area.
func (o Object) DataOffset(geometry blocks.Geometry) int {
	return o.Location.Offset + geometry.ObjectHeaderBytes()
}

// End returns the offset of the first byte following the object, or false if the object extends beyond the block.
func (o Object) End(geometry blocks.Geometry) (int, bool) {
	if !o.Header.SizeKnown() {
		return 0, false
	}
	end := int64(o.DataOffset(geometry)) + int64(geometry.Align(int(o.Header.PayloadSize)))
	if end > int64(geometry.ObjectAreaSize()) {
		return 0, false
	}
	return int(end), true
}

// ReadHeader reads the header of the object.
func ReadHeader(store *persistence.Store, l Location) (Header, error) {
	geometry := store.Geometry()
	b := make([]byte, geometry.ObjectHeaderBytes())
	if err := store.ReadData(l.Block, l.Offset, b); err != nil {
		return Header{}, err
	}

	state, err := DecodeState(geometry, b[:geometry.ObjectStateBytes()])
	if err != nil {
		return Header{}, errors.WithMessagef(err, "object %s", l)
	}
	sizeOffset := geometry.Align(geometry.ObjectStateBytes())
	return Header{
		State:       state,
		PayloadSize: binary.LittleEndian.Uint32(b[sizeOffset:]),
	}, nil
}

// UpdateState moves the object forward to the new state. Only words changed by the transition are written.
func UpdateState(store *persistence.Store, l Location, from, to State) error {
	if to <= from || to == FreeState {
		return errors.Wrapf(blocks.ErrInvalidState, "object %s: %s -> %s", l, from, to)
	}

	geometry := store.Geometry()
	current := EncodeState(geometry, from)
	target := EncodeState(geometry, to)
	w := geometry.Granularity.Width()
	for i := 0; i < len(target); i += w {
		if current[i] == target[i] {
			continue
		}
		if err := store.WriteData(l.Block, l.Offset+i, target[i:i+w]); err != nil {
			return err
		}
	}
	return nil
}

// SetPayloadSize commits the payload size of the object.
func SetPayloadSize(store *persistence.Store, l Location, size int) error {
	geometry := store.Geometry()
	if size < 0 || size > geometry.ObjectAreaSize() {
		return errors.Errorf("object %s: invalid payload size %d", l, size)
	}

	b := make([]byte, geometry.Align(blocks.PayloadSizeBytes))
	for i := range b {
		b[i] = 0xFF
	}
	binary.LittleEndian.PutUint32(b, uint32(size))
	return store.WriteData(l.Block, l.Offset+geometry.Align(geometry.ObjectStateBytes()), b)
}
