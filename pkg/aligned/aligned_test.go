package aligned_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/norfs/blocks"
	"github.com/outofforest/norfs/pkg/aligned"
	"github.com/outofforest/norfs/pkg/memdev"
)

var _ aligned.Device = &memdev.AlignedMemDev{}

var geometry = blocks.Geometry{
	BlockSize:   256,
	BlockCount:  4,
	Granularity: blocks.GranularityBit,
}

func newMedium(requireT *require.Assertions) *aligned.Medium {
	m, err := aligned.New(memdev.NewAligned(geometry, 32))
	requireT.NoError(err)
	return m
}

func TestRoundTrip(t *testing.T) {
	requireT := require.New(t)

	for offset := 0; offset < 40; offset++ {
		for length := 0; length < 72; length++ {
			for shift := 0; shift < 4; shift++ {
				m := newMedium(requireT)

				buf := make([]byte, length+shift)
				data := buf[shift:]
				for i := range data {
					data[i] = byte(offset + length + i + 1)
				}
				requireT.NoError(m.Write(2, offset, data))

				read := make([]byte, length+shift+2)[shift+1 : shift+1+length]
				requireT.NoError(m.Read(2, offset, read))
				requireT.Equal(data, read, "offset %d, length %d, shift %d", offset, length, shift)

				whole := make([]byte, geometry.BlockSize)
				requireT.NoError(m.Read(2, 0, whole))
				for i, b := range whole {
					if i < offset || i >= offset+length {
						requireT.Equal(byte(0xFF), b, "offset %d, length %d, byte %d", offset, length, i)
					}
				}
			}
		}
	}
}

func TestWritesAreAnded(t *testing.T) {
	requireT := require.New(t)

	m := newMedium(requireT)

	requireT.NoError(m.Write(0, 3, []byte{0xF0, 0x0F}))
	requireT.NoError(m.Write(0, 4, []byte{0x3C, 0xFF}))

	b := make([]byte, 4)
	requireT.NoError(m.Read(0, 2, b))
	requireT.Equal([]byte{0xFF, 0xF0, 0x0C, 0xFF}, b)
}

func TestErase(t *testing.T) {
	requireT := require.New(t)

	m := newMedium(requireT)

	requireT.NoError(m.Write(1, 0, []byte{0x00, 0x00, 0x00}))
	requireT.NoError(m.Erase(1))

	b := make([]byte, 3)
	requireT.NoError(m.Read(1, 0, b))
	requireT.Equal([]byte{0xFF, 0xFF, 0xFF}, b)
}

func TestOutOfRange(t *testing.T) {
	requireT := require.New(t)

	m := newMedium(requireT)

	requireT.Error(m.Read(0, 255, make([]byte, 2)))
	requireT.Error(m.Write(0, -1, make([]byte, 2)))
	requireT.NoError(m.Read(0, 254, make([]byte, 2)))
}

func TestInvalidPageSize(t *testing.T) {
	requireT := require.New(t)

	_, err := aligned.New(&badDevice{AlignedMemDev: memdev.NewAligned(geometry, 32)})
	requireT.Error(err)
}

type badDevice struct {
	*memdev.AlignedMemDev
}

func (d *badDevice) PageSize() int {
	return 6
}
