package cache

import (
	"unsafe"
)

const (
	// alignment specifies the alignment requirements of the architecture
	alignment = 8

	// SlotHeaderSize is the size of the header preceding each cached page.
	// It is a multiplication of 8, so page data following the header are correctly aligned.
	SlotHeaderSize = (int(unsafe.Sizeof(header{}))-1)/alignment*alignment + alignment
)

// SlotState is the enum representing the state of the cache slot.
type SlotState byte

// Enum of possible slot states.
const (
	FreeSlotState SlotState = iota
	FetchedSlotState
)

type header struct {
	Block    int64
	Offset   int64
	LastUsed uint64
	State    SlotState
}

// Stats reports cache efficiency.
type Stats struct {
	Hits   uint64
	Misses uint64
}
