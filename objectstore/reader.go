package objectstore

import (
	"io"

	"github.com/pkg/errors"

	"github.com/outofforest/norfs/blocks"
	"github.com/outofforest/norfs/persistence"
)

// Reader reads payload of the finalized object.
type Reader struct {
	store    *persistence.Store
	location Location
	offset   int
	size     int
	cursor   int
}

// NewReader returns reader of the object.
func NewReader(store *persistence.Store, l Location) (*Reader, error) {
	header, err := ReadHeader(store, l)
	if err != nil {
		return nil, err
	}
	if header.State != FinalizedState {
		return nil, errors.Wrapf(blocks.ErrInvalidState, "reading %s object %s", header.State, l)
	}

	geometry := store.Geometry()
	o := Object{Location: l, Header: header}
	if _, ok := o.End(geometry); !ok {
		return nil, errors.Wrapf(blocks.ErrFsCorrupted, "object %s: payload size %d exceeds block", l,
			header.PayloadSize)
	}

	return &Reader{
		store:    store,
		location: l,
		offset:   o.DataOffset(geometry),
		size:     int(header.PayloadSize),
	}, nil
}

// Len returns the size of the payload.
func (r *Reader) Len() int {
	return r.size
}

// Remaining returns the number of bytes not read yet.
func (r *Reader) Remaining() int {
	return r.size - r.cursor
}

// Rewind moves the reader back to the beginning of the payload.
func (r *Reader) Rewind() {
	r.cursor = 0
}

// Read reads the payload.
func (r *Reader) Read(p []byte) (int, error) {
	if r.cursor == r.size {
		return 0, io.EOF
	}

	n := min(len(p), r.Remaining())
	if err := r.store.ReadData(r.location.Block, r.offset+r.cursor, p[:n]); err != nil {
		return 0, err
	}
	r.cursor += n
	return n, nil
}

// ReadPayload reads the whole payload of the object.
func ReadPayload(store *persistence.Store, l Location) ([]byte, error) {
	r, err := NewReader(store, l)
	if err != nil {
		return nil, err
	}
	b := make([]byte, r.Len())
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
