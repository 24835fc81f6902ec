package cache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/norfs/pkg/diag"
	"github.com/outofforest/norfs/pkg/memdev"
)

func newCache(pageSize, pages int) (*Cache, *diag.Counters) {
	counters := diag.NewCounters(memdev.New(256, 4))
	return New(counters, pageSize, pages), counters
}

func TestHitsAndMisses(t *testing.T) {
	requireT := require.New(t)

	c, counters := newCache(16, 2)

	b := make([]byte, 4)
	requireT.NoError(c.Read(1, 10, b))
	requireT.NoError(c.Read(1, 12, b))
	requireT.NoError(c.Read(1, 22, b))
	requireT.Equal(Stats{Hits: 2, Misses: 1}, c.Stats())
	requireT.EqualValues(1, counters.Reads())

	// Crosses the end of the cached page.
	requireT.NoError(c.Read(1, 24, b))
	requireT.Equal(Stats{Hits: 2, Misses: 2}, c.Stats())
}

func TestPageAnchoredAtBlockEnd(t *testing.T) {
	requireT := require.New(t)

	c, _ := newCache(16, 1)

	requireT.NoError(c.Write(0, 250, []byte{1, 2, 3, 4, 5, 6}))

	b := make([]byte, 2)
	requireT.NoError(c.Read(0, 254, b))
	requireT.Equal([]byte{5, 6}, b)
	requireT.NoError(c.Read(0, 240, b))
	requireT.Equal([]byte{0xFF, 0xFF}, b)
	requireT.Equal(Stats{Hits: 1, Misses: 1}, c.Stats())
}

func TestLargeReadsBypassCache(t *testing.T) {
	requireT := require.New(t)

	c, counters := newCache(16, 2)

	b := make([]byte, 17)
	requireT.NoError(c.Read(0, 0, b))
	requireT.NoError(c.Read(0, 0, b))
	requireT.Equal(Stats{}, c.Stats())
	requireT.EqualValues(2, counters.Reads())
}

func TestPageSizedReadIsCached(t *testing.T) {
	requireT := require.New(t)

	c, counters := newCache(16, 2)
	requireT.NoError(c.Write(3, 240, []byte{1, 2, 3, 4}))

	b := make([]byte, 16)
	requireT.NoError(c.Read(3, 240, b))
	requireT.NoError(c.Read(3, 240, b))
	requireT.Equal(Stats{Hits: 1, Misses: 1}, c.Stats())
	requireT.EqualValues(1, counters.Reads())
	requireT.Equal([]byte{1, 2, 3, 4}, b[:4])
}

func TestLeastRecentlyUsedIsEvicted(t *testing.T) {
	requireT := require.New(t)

	c, _ := newCache(16, 2)

	b := make([]byte, 1)
	requireT.NoError(c.Read(0, 0, b))
	requireT.NoError(c.Read(1, 0, b))
	requireT.NoError(c.Read(0, 1, b))
	requireT.NoError(c.Read(2, 0, b))
	requireT.Equal(Stats{Hits: 1, Misses: 3}, c.Stats())

	// Block 0 is still cached, block 1 was evicted.
	requireT.NoError(c.Read(0, 2, b))
	requireT.Equal(Stats{Hits: 2, Misses: 3}, c.Stats())
	requireT.NoError(c.Read(1, 2, b))
	requireT.Equal(Stats{Hits: 2, Misses: 4}, c.Stats())
}

func TestWritesKeepCacheCoherent(t *testing.T) {
	requireT := require.New(t)

	c, _ := newCache(16, 2)

	b := make([]byte, 4)
	requireT.NoError(c.Read(3, 8, b))
	requireT.Equal([]byte{0xFF, 0xFF, 0xFF, 0xFF}, b)

	requireT.NoError(c.Write(3, 6, []byte{0x0F, 0x0F, 0xF0, 0x33}))
	requireT.NoError(c.Write(3, 9, []byte{0x3C}))
	requireT.NoError(c.Read(3, 8, b))
	requireT.Equal([]byte{0xF0, 0x30, 0xFF, 0xFF}, b)
	requireT.Equal(Stats{Hits: 1, Misses: 1}, c.Stats())
}

func TestEraseDropsPages(t *testing.T) {
	requireT := require.New(t)

	c, counters := newCache(16, 2)

	requireT.NoError(c.Write(2, 0, []byte{0x00}))

	b := make([]byte, 1)
	requireT.NoError(c.Read(2, 0, b))
	requireT.Equal([]byte{0x00}, b)

	requireT.NoError(c.Erase(2))
	requireT.NoError(c.Read(2, 0, b))
	requireT.Equal([]byte{0xFF}, b)
	requireT.Equal(Stats{Misses: 2}, c.Stats())
	requireT.EqualValues(1, counters.Erases())
}
