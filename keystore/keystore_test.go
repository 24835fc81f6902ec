package keystore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/norfs/blocks"
	"github.com/outofforest/norfs/objectstore"
	"github.com/outofforest/norfs/persistence"
	"github.com/outofforest/norfs/pkg/memdev"
	"github.com/outofforest/norfs/spacestore"
)

type env struct {
	requireT *require.Assertions
	store    *persistence.Store
	infos    []persistence.BlockInfo
	space    *spacestore.Space
	keys     *Store
}

func newEnv(t *testing.T) *env {
	requireT := require.New(t)

	store, err := persistence.New(memdev.New(256, 8))
	requireT.NoError(err)
	_, err = store.FormatStorage()
	requireT.NoError(err)

	infos := make([]persistence.BlockInfo, 8)
	for block := range infos {
		infos[block], err = objectstore.ScanBlock(store, block)
		requireT.NoError(err)
		infos[block].AllowAlloc = true
	}

	return &env{
		requireT: requireT,
		store:    store,
		infos:    infos,
		space:    spacestore.New(store, infos),
		keys:     New(store, infos),
	}
}

func (e *env) object(t blocks.BlockType, payload []byte) objectstore.Location {
	requireT := e.requireT

	l, _, err := e.space.Allocate(t, len(payload), len(payload))
	requireT.NoError(err)
	w, err := objectstore.NewWriter(e.store, l)
	requireT.NoError(err)
	requireT.NoError(w.Allocate())
	_, err = w.Write(payload)
	requireT.NoError(err)
	size, err := w.Finalize()
	requireT.NoError(err)
	e.space.Commit(l, size)
	return l
}

func (e *env) put(path string, revision uint32, data ...[]byte) Entry {
	var locations []objectstore.Location
	var length int
	for _, d := range data {
		locations = append(locations, e.object(blocks.DataBlockType, d))
		length += len(d)
	}
	l := e.object(blocks.MetadataBlockType,
		EncodeMetadata(e.store.Geometry(), path, revision, length, locations))
	return Entry{
		Location: l,
		Path:     path,
		Revision: revision,
		Length:   length,
		Data:     locations,
	}
}

func (e *env) state(l objectstore.Location) objectstore.State {
	header, err := objectstore.ReadHeader(e.store, l)
	e.requireT.NoError(err)
	return header.State
}

func TestMetadataEncoding(t *testing.T) {
	requireT := require.New(t)

	geometry := blocks.Geometry{BlockSize: 256, BlockCount: 8}
	data := []objectstore.Location{{Block: 1, Offset: 0}, {Block: 2, Offset: 100}}

	b := EncodeMetadata(geometry, "config/wifi", 7, 300, data)
	requireT.Len(b, MetadataSize(geometry, len("config/wifi"), 2))
	requireT.Equal(24, metadataHeaderSize)

	e, err := DecodeMetadata(geometry, b)
	requireT.NoError(err)
	requireT.Equal(Entry{
		Path:     "config/wifi",
		Revision: 7,
		Length:   300,
		Data:     data,
	}, e)

	e, err = DecodeMetadata(geometry, EncodeMetadata(geometry, "empty", 0, 0, nil))
	requireT.NoError(err)
	requireT.Empty(e.Data)
	requireT.Zero(e.Length)
}

func TestCorruptedMetadata(t *testing.T) {
	requireT := require.New(t)

	geometry := blocks.Geometry{BlockSize: 256, BlockCount: 8}
	b := EncodeMetadata(geometry, "path", 1, 10, []objectstore.Location{{Block: 1, Offset: 0}})

	_, err := DecodeMetadata(geometry, b[:10])
	requireT.ErrorIs(err, blocks.ErrFsCorrupted)

	_, err = DecodeMetadata(geometry, b[:len(b)-1])
	requireT.ErrorIs(err, blocks.ErrFsCorrupted)

	modified := append([]byte{}, b...)
	modified[metadataHeaderSize] = 'P'
	_, err = DecodeMetadata(geometry, modified)
	requireT.ErrorIs(err, blocks.ErrFsCorrupted)

	// Bits cleared by interrupted write of the location list.
	torn := append([]byte{}, b...)
	torn[len(torn)-geometry.ObjectLocationBytes()-1] = 0xFF
	_, err = DecodeMetadata(geometry, torn)
	requireT.ErrorIs(err, blocks.ErrFsCorrupted)

	invalid := EncodeMetadata(geometry, "path", 1, 10, []objectstore.Location{{Block: 9, Offset: 0}})
	_, err = DecodeMetadata(geometry, invalid)
	requireT.ErrorIs(err, blocks.ErrFsCorrupted)
}

func TestValidatePath(t *testing.T) {
	requireT := require.New(t)

	requireT.Error(ValidatePath(""))
	requireT.Error(ValidatePath(string(make([]byte, MaxPathLength+1))))
	requireT.NoError(ValidatePath("a"))
}

func TestLookup(t *testing.T) {
	e := newEnv(t)
	requireT := e.requireT

	// Path does not exist

	_, _, err := e.keys.Lookup("config")
	requireT.ErrorIs(err, blocks.ErrNotFound)

	// Store the paths

	config := e.put("config", 1, []byte{1, 2, 3})
	e.put("config2", 1, []byte{4})
	e.put("record", 1, []byte{5, 6}, []byte{7})

	entry, stale, err := e.keys.Lookup("config")
	requireT.NoError(err)
	requireT.Empty(stale)
	requireT.Equal(config, entry)

	entry, _, err = e.keys.Lookup("record")
	requireT.NoError(err)
	requireT.Equal(3, entry.Length)
	requireT.Len(entry.Data, 2)

	// Newer revision wins

	config2 := e.put("config", 2, []byte{8})
	entry, stale, err = e.keys.Lookup("config")
	requireT.NoError(err)
	requireT.Equal(config2, entry)
	requireT.Equal([]Entry{config}, stale)

	// Deleted path is not found

	requireT.NoError(e.keys.Delete(config2))
	requireT.NoError(e.keys.Delete(config))
	requireT.Equal(objectstore.DeletedState, e.state(config.Location))
	requireT.Equal(objectstore.DeletedState, e.state(config.Data[0]))

	_, _, err = e.keys.Lookup("config")
	requireT.ErrorIs(err, blocks.ErrNotFound)
}

func TestWalk(t *testing.T) {
	e := newEnv(t)
	requireT := e.requireT

	e.put("b", 1, []byte{1})
	e.put("a", 1, []byte{1, 2})
	e.put("b", 2, []byte{1, 2, 3})
	e.put("c", 1)

	var paths []string
	var lengths []int
	requireT.NoError(e.keys.Walk(func(entry Entry) error {
		paths = append(paths, entry.Path)
		lengths = append(lengths, entry.Length)
		return nil
	}))
	requireT.Equal([]string{"a", "b", "c"}, paths)
	requireT.Equal([]int{2, 3, 0}, lengths)
}

func TestSweep(t *testing.T) {
	e := newEnv(t)
	requireT := e.requireT

	old := e.put("config", 1, []byte{1, 2})
	current := e.put("config", 2, []byte{3})
	orphan := e.object(blocks.DataBlockType, []byte{4, 5})
	invalid := e.object(blocks.MetadataBlockType, []byte("metadata written only partially, no checksum"))

	entry, stale, err := e.keys.Lookup("config")
	requireT.NoError(err)
	requireT.Equal(current, entry)
	requireT.Len(stale, 1)

	result, err := e.keys.Sweep()
	requireT.NoError(err)
	requireT.Equal(SweepResult{StaleEntries: 1, InvalidEntries: 1, OrphanObjects: 2}, result)

	requireT.Equal(objectstore.DeletedState, e.state(invalid))

	requireT.Equal(objectstore.DeletedState, e.state(old.Location))
	requireT.Equal(objectstore.DeletedState, e.state(old.Data[0]))
	requireT.Equal(objectstore.DeletedState, e.state(orphan))
	requireT.Equal(objectstore.FinalizedState, e.state(current.Location))
	requireT.Equal(objectstore.FinalizedState, e.state(current.Data[0]))

	// Nothing left to sweep

	result, err = e.keys.Sweep()
	requireT.NoError(err)
	requireT.Equal(SweepResult{}, result)
}
