package objectstore

import (
	"github.com/outofforest/norfs/blocks"
	"github.com/outofforest/norfs/persistence"
)

// Iterator walks objects of the block in offset order.
type Iterator struct {
	store    *persistence.Store
	geometry blocks.Geometry
	block    int
	offset   int
}

// NewIterator returns iterator starting at the first object of the block.
func NewIterator(store *persistence.Store, block int) *Iterator {
	return &Iterator{
		store:    store,
		geometry: store.Geometry(),
		block:    block,
	}
}

// Offset returns the offset where the next object header is expected.
func (it *Iterator) Offset() int {
	return it.offset
}

// Next returns the next object. False is returned when free space or the end of the block is reached.
// Object without valid size is always the last one.
func (it *Iterator) Next() (Object, bool, error) {
	if it.offset+it.geometry.ObjectHeaderBytes() > it.geometry.ObjectAreaSize() {
		return Object{}, false, nil
	}

	l := Location{Block: it.block, Offset: it.offset}
	header, err := ReadHeader(it.store, l)
	if err != nil {
		return Object{}, false, err
	}
	if header.State == FreeState {
		return Object{}, false, nil
	}

	o := Object{Location: l, Header: header}
	if end, ok := o.End(it.geometry); ok {
		it.offset = end
	} else {
		it.offset = it.geometry.ObjectAreaSize()
	}
	return o, true, nil
}
