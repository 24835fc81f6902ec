package cache

import (
	"github.com/outofforest/photon"

	"github.com/outofforest/norfs/blocks"
)

var _ blocks.Medium = &Cache{}

// Cache is the read cache of flash pages. Writes and erases pass through to the medium and keep cached pages
// coherent.
type Cache struct {
	medium   blocks.Medium
	geometry blocks.Geometry
	pageSize int
	nSlots   int
	slotSize int
	data     []byte
	tick     uint64
	stats    Stats
}

// New creates new cache of pages.
func New(medium blocks.Medium, pageSize, pages int) *Cache {
	geometry := medium.Geometry()
	if pageSize > geometry.BlockSize {
		pageSize = geometry.BlockSize
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if pages < 1 {
		pages = 1
	}

	slotSize := (SlotHeaderSize + pageSize + alignment - 1) / alignment * alignment
	return &Cache{
		medium:   medium,
		geometry: geometry,
		pageSize: pageSize,
		nSlots:   pages,
		slotSize: slotSize,
		data:     make([]byte, pages*slotSize),
	}
}

// Geometry returns geometry of the medium.
func (c *Cache) Geometry() blocks.Geometry {
	return c.geometry
}

// Stats returns the hit and miss counters.
func (c *Cache) Stats() Stats {
	return c.stats
}

// Read reads data from cache, loading the page on miss.
func (c *Cache) Read(block, offset int, p []byte) error {
	if len(p) == 0 {
		return nil
	}
	if len(p) > c.pageSize || offset < 0 || offset+len(p) > c.geometry.BlockSize {
		return c.medium.Read(block, offset, p)
	}

	c.tick++
	if slot, ok := c.find(block, offset, len(p)); ok {
		c.stats.Hits++
		h := c.header(slot)
		h.V.LastUsed = c.tick
		copy(p, c.page(slot)[offset-int(h.V.Offset):])
		return nil
	}
	c.stats.Misses++

	slot := c.victim()
	h := c.header(slot)
	h.V.State = FreeSlotState

	start := offset
	if start > c.geometry.BlockSize-c.pageSize {
		start = c.geometry.BlockSize - c.pageSize
	}
	if err := c.medium.Read(block, start, c.page(slot)); err != nil {
		return err
	}

	h.V.Block = int64(block)
	h.V.Offset = int64(start)
	h.V.LastUsed = c.tick
	h.V.State = FetchedSlotState

	copy(p, c.page(slot)[offset-start:])
	return nil
}

// Write writes data to the medium and applies the same bit clearing to cached pages.
func (c *Cache) Write(block, offset int, p []byte) error {
	if err := c.medium.Write(block, offset, p); err != nil {
		c.drop(block, offset, len(p))
		return err
	}

	for slot := range c.nSlots {
		h := c.header(slot)
		if h.V.State != FetchedSlotState || h.V.Block != int64(block) {
			continue
		}
		pageStart := int(h.V.Offset)
		start := max(offset, pageStart)
		end := min(offset+len(p), pageStart+c.pageSize)
		if start >= end {
			continue
		}
		page := c.page(slot)
		for i := start; i < end; i++ {
			page[i-pageStart] &= p[i-offset]
		}
	}
	return nil
}

// Erase erases the block and drops its cached pages.
func (c *Cache) Erase(block int) error {
	c.drop(block, 0, c.geometry.BlockSize)
	return c.medium.Erase(block)
}

// Invalidate drops all the cached pages.
func (c *Cache) Invalidate() {
	for slot := range c.nSlots {
		c.header(slot).V.State = FreeSlotState
	}
}

func (c *Cache) find(block, offset, n int) (int, bool) {
	for slot := range c.nSlots {
		h := c.header(slot)
		if h.V.State == FetchedSlotState && h.V.Block == int64(block) &&
			int(h.V.Offset) <= offset && offset+n <= int(h.V.Offset)+c.pageSize {
			return slot, true
		}
	}
	return 0, false
}

func (c *Cache) victim() int {
	var selected int
	var lastUsed uint64
	for slot := range c.nSlots {
		h := c.header(slot)
		if h.V.State == FreeSlotState {
			return slot
		}
		if slot == 0 || h.V.LastUsed < lastUsed {
			selected = slot
			lastUsed = h.V.LastUsed
		}
	}
	return selected
}

func (c *Cache) drop(block, offset, n int) {
	for slot := range c.nSlots {
		h := c.header(slot)
		if h.V.State == FetchedSlotState && h.V.Block == int64(block) &&
			int(h.V.Offset) < offset+n && offset < int(h.V.Offset)+c.pageSize {
			h.V.State = FreeSlotState
		}
	}
}

func (c *Cache) header(slot int) photon.Union[*header] {
	return photon.NewFromBytes[header](c.data[slot*c.slotSize:])
}

func (c *Cache) page(slot int) []byte {
	offset := slot*c.slotSize + SlotHeaderSize
	return c.data[offset : offset+c.pageSize]
}
