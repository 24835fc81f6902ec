package objectstore

import (
	"github.com/pkg/errors"

	"github.com/outofforest/norfs/blocks"
	"github.com/outofforest/norfs/persistence"
)

// Writer appends payload of the new object.
// On word granularity the unaligned tail is buffered until the word is complete or the object is finalized.
// Bytes of failed writes are counted as written, so size committed by Delete covers everything which might
// have reached the medium.
type Writer struct {
	store    *persistence.Store
	geometry blocks.Geometry
	location Location
	state    State
	written  int
	buffer   []byte
}

// NewWriter returns writer of the object at free location.
func NewWriter(store *persistence.Store, l Location) (*Writer, error) {
	header, err := ReadHeader(store, l)
	if err != nil {
		return nil, err
	}
	if header.State != FreeState {
		return nil, errors.Wrapf(blocks.ErrInvalidState, "object %s is %s", l, header.State)
	}

	geometry := store.Geometry()
	return &Writer{
		store:    store,
		geometry: geometry,
		location: l,
		state:    FreeState,
		buffer:   make([]byte, 0, geometry.Granularity.Width()),
	}, nil
}

// Location returns location of the object.
func (w *Writer) Location() Location {
	return w.location
}

// Len returns the number of payload bytes written so far.
func (w *Writer) Len() int {
	return w.written + len(w.buffer)
}

// Space returns the number of payload bytes which might still be written.
func (w *Writer) Space() int {
	return w.geometry.ObjectAreaSize() - w.location.Offset - w.geometry.ObjectHeaderBytes() - w.Len()
}

// Allocate marks the object as allocated.
func (w *Writer) Allocate() error {
	return w.setState(AllocatedState)
}

// Write appends bytes to the payload.
func (w *Writer) Write(p []byte) (int, error) {
	if w.state != AllocatedState {
		return 0, errors.Wrapf(blocks.ErrInvalidState, "writing to %s object %s", w.state, w.location)
	}
	if len(p) > w.Space() {
		return 0, errors.Wrapf(blocks.ErrObjectTooLarge, "object %s: %d bytes requested, %d available",
			w.location, len(p), w.Space())
	}

	n := len(p)
	if n == 0 {
		return 0, nil
	}
	if !w.geometry.Granularity.IsWord() {
		err := w.store.WriteData(w.location.Block, w.dataOffset(), p)
		w.written += n
		if err != nil {
			return 0, err
		}
		return n, nil
	}

	if len(w.buffer) > 0 {
		copied := min(len(p), cap(w.buffer)-len(w.buffer))
		w.buffer = append(w.buffer, p[:copied]...)
		p = p[copied:]
		if len(w.buffer) < cap(w.buffer) {
			return n, nil
		}
		if err := w.flush(); err != nil {
			return 0, err
		}
	}

	if aligned := len(p) - len(p)%cap(w.buffer); aligned > 0 {
		err := w.store.WriteData(w.location.Block, w.dataOffset(), p[:aligned])
		w.written += aligned
		if err != nil {
			return 0, err
		}
		p = p[aligned:]
	}
	w.buffer = append(w.buffer, p...)

	return n, nil
}

// Finalize commits the payload and its size. It returns the number of bytes occupied by the object.
func (w *Writer) Finalize() (int, error) {
	if w.state != AllocatedState {
		return 0, errors.Wrapf(blocks.ErrInvalidState, "finalizing %s object %s", w.state, w.location)
	}

	if err := w.flush(); err != nil {
		return 0, err
	}
	if err := SetPayloadSize(w.store, w.location, w.written); err != nil {
		return 0, err
	}
	if err := w.setState(FinalizedState); err != nil {
		return 0, err
	}
	return w.geometry.ObjectHeaderBytes() + w.geometry.Align(w.written), nil
}

// Delete deletes the object. Size of allocated object is committed first, so the next object can be found.
func (w *Writer) Delete() error {
	switch w.state {
	case FreeState, DeletedState:
		return nil
	case AllocatedState:
		if err := w.flush(); err != nil {
			return err
		}
		if err := SetPayloadSize(w.store, w.location, w.written); err != nil {
			return err
		}
	}
	return w.setState(DeletedState)
}

func (w *Writer) setState(s State) error {
	if err := UpdateState(w.store, w.location, w.state, s); err != nil {
		return err
	}
	w.state = s
	return nil
}

func (w *Writer) flush() error {
	if len(w.buffer) == 0 {
		return nil
	}

	n := len(w.buffer)
	for len(w.buffer) < cap(w.buffer) {
		w.buffer = append(w.buffer, 0xFF)
	}
	err := w.store.WriteData(w.location.Block, w.dataOffset(), w.buffer)
	w.written += n
	w.buffer = w.buffer[:0]
	return err
}

func (w *Writer) dataOffset() int {
	return w.location.Offset + w.geometry.ObjectHeaderBytes() + w.written
}
