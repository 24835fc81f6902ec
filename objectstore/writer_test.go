package objectstore

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/norfs/blocks"
	"github.com/outofforest/norfs/persistence"
	"github.com/outofforest/norfs/pkg/memdev"
)

func newStore(requireT *require.Assertions, g blocks.WriteGranularity) (*persistence.Store, *memdev.MemDev) {
	dev := memdev.NewWithGeometry(geometryFor(g))
	store, err := persistence.New(dev)
	requireT.NoError(err)
	_, err = store.FormatStorage()
	requireT.NoError(err)
	return store, dev
}

func payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + 1)
	}
	return b
}

func writeObject(requireT *require.Assertions, store *persistence.Store, l Location, data []byte, chunk int) int {
	w, err := NewWriter(store, l)
	requireT.NoError(err)
	requireT.NoError(w.Allocate())
	for p := data; len(p) > 0; {
		n := min(chunk, len(p))
		written, err := w.Write(p[:n])
		requireT.NoError(err)
		requireT.Equal(n, written)
		p = p[n:]
	}
	requireT.Equal(len(data), w.Len())
	size, err := w.Finalize()
	requireT.NoError(err)
	return size
}

func TestWriteAndRead(t *testing.T) {
	requireT := require.New(t)

	for _, g := range granularities {
		for _, chunk := range []int{1, 3, 5, 64} {
			store, _ := newStore(requireT, g)
			geometry := store.Geometry()

			data := payload(37)
			size := writeObject(requireT, store, Location{Block: 2}, data, chunk)
			requireT.Equal(geometry.ObjectHeaderBytes()+geometry.Align(37), size)

			read, err := ReadPayload(store, Location{Block: 2})
			requireT.NoError(err)
			requireT.Equal(data, read, "granularity %s, chunk %d", g, chunk)

			header, err := ReadHeader(store, Location{Block: 2})
			requireT.NoError(err)
			requireT.Equal(Header{State: FinalizedState, PayloadSize: 37}, header)
		}
	}
}

func TestReader(t *testing.T) {
	requireT := require.New(t)

	store, _ := newStore(requireT, blocks.Word(4))
	data := payload(10)
	writeObject(requireT, store, Location{Block: 1}, data, 10)

	r, err := NewReader(store, Location{Block: 1})
	requireT.NoError(err)
	requireT.Equal(10, r.Len())

	b := make([]byte, 4)
	n, err := r.Read(b)
	requireT.NoError(err)
	requireT.Equal(4, n)
	requireT.Equal(data[:4], b)
	requireT.Equal(6, r.Remaining())

	rest, err := io.ReadAll(r)
	requireT.NoError(err)
	requireT.Equal(data[4:], rest)

	n, err = r.Read(b)
	requireT.ErrorIs(err, io.EOF)
	requireT.Zero(n)

	r.Rewind()
	all, err := io.ReadAll(r)
	requireT.NoError(err)
	requireT.Equal(data, all)
}

func TestIteration(t *testing.T) {
	requireT := require.New(t)

	for _, g := range granularities {
		store, _ := newStore(requireT, g)
		geometry := store.Geometry()

		var offsets []int
		offset := 0
		for _, n := range []int{0, 1, 9, 20} {
			offsets = append(offsets, offset)
			offset += writeObject(requireT, store, Location{Block: 5, Offset: offset}, payload(n), 4)
		}

		w, err := NewWriter(store, Location{Block: 5, Offset: offset})
		requireT.NoError(err)
		requireT.NoError(w.Allocate())
		_, err = w.Write(payload(3))
		requireT.NoError(err)
		requireT.NoError(w.Delete())
		offsets = append(offsets, offset)
		offset += geometry.ObjectHeaderBytes() + geometry.Align(3)

		it := NewIterator(store, 5)
		var found []int
		var states []State
		for {
			o, ok, err := it.Next()
			requireT.NoError(err)
			if !ok {
				break
			}
			found = append(found, o.Location.Offset)
			states = append(states, o.Header.State)
		}
		requireT.Equal(offsets, found)
		requireT.Equal([]State{FinalizedState, FinalizedState, FinalizedState, FinalizedState, DeletedState}, states)
		requireT.Equal(offset, it.Offset())
	}
}

func TestStateTransitionsAreChecked(t *testing.T) {
	requireT := require.New(t)

	store, _ := newStore(requireT, blocks.GranularityBit)
	l := Location{Block: 3}

	w, err := NewWriter(store, l)
	requireT.NoError(err)

	_, err = w.Write([]byte{1})
	requireT.ErrorIs(err, blocks.ErrInvalidState)
	_, err = w.Finalize()
	requireT.ErrorIs(err, blocks.ErrInvalidState)

	requireT.NoError(w.Allocate())
	_, err = NewReader(store, l)
	requireT.ErrorIs(err, blocks.ErrInvalidState)
	_, err = NewWriter(store, l)
	requireT.ErrorIs(err, blocks.ErrInvalidState)

	_, err = w.Finalize()
	requireT.NoError(err)
	requireT.ErrorIs(w.Allocate(), blocks.ErrInvalidState)
	requireT.ErrorIs(UpdateState(store, l, FinalizedState, AllocatedState), blocks.ErrInvalidState)

	requireT.NoError(w.Delete())
	requireT.NoError(w.Delete())
	_, err = NewReader(store, l)
	requireT.ErrorIs(err, blocks.ErrInvalidState)
}

func TestObjectTooLarge(t *testing.T) {
	requireT := require.New(t)

	store, _ := newStore(requireT, blocks.Word(4))
	geometry := store.Geometry()

	w, err := NewWriter(store, Location{Block: 0, Offset: 16})
	requireT.NoError(err)
	requireT.NoError(w.Allocate())

	space := geometry.ObjectAreaSize() - 16 - geometry.ObjectHeaderBytes()
	requireT.Equal(space, w.Space())

	_, err = w.Write(make([]byte, space+1))
	requireT.ErrorIs(err, blocks.ErrObjectTooLarge)

	_, err = w.Write(bytes.Repeat([]byte{0x01}, space))
	requireT.NoError(err)
	requireT.Zero(w.Space())

	size, err := w.Finalize()
	requireT.NoError(err)
	requireT.Equal(geometry.ObjectAreaSize()-16, size)
}

func TestWordWritesAreAligned(t *testing.T) {
	requireT := require.New(t)

	store, dev := newStore(requireT, blocks.Word(4))
	geometry := store.Geometry()

	w, err := NewWriter(store, Location{Block: 1})
	requireT.NoError(err)
	requireT.NoError(w.Allocate())
	_, err = w.Write([]byte{1, 2})
	requireT.NoError(err)

	// Partial word stays buffered.
	dataOffset := blocks.HeaderSize + geometry.ObjectHeaderBytes()
	requireT.Equal([]byte{0xFF, 0xFF, 0xFF, 0xFF}, dev.Bytes(1)[dataOffset:dataOffset+4])

	_, err = w.Write([]byte{3, 4, 5})
	requireT.NoError(err)
	requireT.Equal([]byte{1, 2, 3, 4, 0xFF}, dev.Bytes(1)[dataOffset:dataOffset+5])

	_, err = w.Finalize()
	requireT.NoError(err)
	requireT.Equal([]byte{1, 2, 3, 4, 5, 0xFF, 0xFF, 0xFF}, dev.Bytes(1)[dataOffset:dataOffset+8])
}
