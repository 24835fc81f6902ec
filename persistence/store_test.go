package persistence

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/norfs/blocks"
	"github.com/outofforest/norfs/pkg/diag"
	"github.com/outofforest/norfs/pkg/memdev"
)

func newStore(requireT *require.Assertions) (*Store, *diag.Counters, *memdev.MemDev) {
	dev := memdev.New(256, 32)
	counters := diag.NewCounters(dev)
	s, err := New(counters)
	requireT.NoError(err)
	return s, counters, dev
}

func TestInvalidGeometry(t *testing.T) {
	requireT := require.New(t)

	_, err := New(memdev.New(16, 4))
	requireT.ErrorIs(err, blocks.ErrInvalidGeometry)
}

func TestWrittenDataCanBeRead(t *testing.T) {
	requireT := require.New(t)

	s, _, _ := newStore(requireT)

	_, err := s.FormatBlock(3)
	requireT.NoError(err)
	requireT.NoError(s.WriteData(3, 5, []byte{1, 2, 3}))

	b := make([]byte, 8)
	requireT.NoError(s.ReadData(3, 0, b))
	requireT.Equal([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 1, 2, 3}, b)
}

func TestDataRangeIsChecked(t *testing.T) {
	requireT := require.New(t)

	s, _, _ := newStore(requireT)

	requireT.Error(s.WriteData(3, 247, []byte{1, 2}))
	requireT.Error(s.ReadData(32, 0, []byte{1}))
	requireT.Error(s.ReadData(0, -1, []byte{1}))
	requireT.NoError(s.WriteData(3, 246, []byte{1, 2}))
}

func TestIOErrorsAreWrapped(t *testing.T) {
	requireT := require.New(t)

	pc := diag.NewPowerCut(memdev.New(256, 4), 0, diag.LowBitsFirst)
	s, err := New(pc)
	requireT.NoError(err)

	err = s.WriteData(1, 0, []byte{0x00})
	requireT.ErrorIs(err, blocks.ErrIO)
	requireT.ErrorIs(err, diag.ErrPowerLoss)

	var ioErr *blocks.IOError
	requireT.ErrorAs(err, &ioErr)
	requireT.Equal(1, ioErr.Block)
	requireT.Equal("write", ioErr.Op)

	_, err = s.ReadHeader(2)
	requireT.ErrorIs(err, blocks.ErrIO)
}

func TestSetBlockType(t *testing.T) {
	requireT := require.New(t)

	s, _, _ := newStore(requireT)

	_, err := s.FormatBlock(1)
	requireT.NoError(err)
	_, err = s.FormatBlock(2)
	requireT.NoError(err)
	requireT.NoError(s.SetBlockType(1, blocks.DataBlockType))
	requireT.NoError(s.SetBlockType(2, blocks.MetadataBlockType))

	h, err := s.ReadHeader(1)
	requireT.NoError(err)
	requireT.True(h.IsKnown())
	requireT.Equal(blocks.DataBlockType, h.Type)
	requireT.EqualValues(0, h.EraseCount)

	h, err = s.ReadHeader(2)
	requireT.NoError(err)
	requireT.Equal(blocks.MetadataBlockType, h.Type)
}

func TestLastWrittenByte(t *testing.T) {
	requireT := require.New(t)

	s, _, _ := newStore(requireT)

	last, err := s.LastWrittenByte(0, 0, 248)
	requireT.NoError(err)
	requireT.Equal(-1, last)

	requireT.NoError(s.WriteData(0, 3, []byte{0x7F}))
	requireT.NoError(s.WriteData(0, 130, []byte{0x00}))

	last, err = s.LastWrittenByte(0, 0, 248)
	requireT.NoError(err)
	requireT.Equal(130, last)

	last, err = s.LastWrittenByte(0, 0, 130)
	requireT.NoError(err)
	requireT.Equal(3, last)

	empty, err := s.IsRangeEmpty(0, 4, 126)
	requireT.NoError(err)
	requireT.True(empty)
}
