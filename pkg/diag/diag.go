package diag

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/outofforest/norfs/blocks"
)

// ErrPowerLoss is returned by every operation executed after simulated power loss.
var ErrPowerLoss = errors.New("power loss")

var (
	_ blocks.Medium = &Counters{}
	_ blocks.Medium = &PowerCut{}
)

// Counters counts operations executed on the medium.
type Counters struct {
	medium blocks.Medium
	erases uint64
	reads  uint64
	writes uint64
}

// NewCounters wraps the medium with counters.
func NewCounters(medium blocks.Medium) *Counters {
	return &Counters{medium: medium}
}

// Geometry returns geometry of the medium.
func (c *Counters) Geometry() blocks.Geometry {
	return c.medium.Geometry()
}

// Erase erases the block.
func (c *Counters) Erase(block int) error {
	c.erases++
	return c.medium.Erase(block)
}

// Read reads from the block.
func (c *Counters) Read(block, offset int, p []byte) error {
	c.reads++
	return c.medium.Read(block, offset, p)
}

// Write writes to the block.
func (c *Counters) Write(block, offset int, p []byte) error {
	c.writes++
	return c.medium.Write(block, offset, p)
}

// Erases returns the number of erases.
func (c *Counters) Erases() uint64 {
	return c.erases
}

// Reads returns the number of reads.
func (c *Counters) Reads() uint64 {
	return c.reads
}

// Writes returns the number of writes.
func (c *Counters) Writes() uint64 {
	return c.writes
}

// Reset zeroes the counters.
func (c *Counters) Reset() {
	c.erases = 0
	c.reads = 0
	c.writes = 0
}

// Tear selects bits of the byte being written which are left set when power is lost.
type Tear byte

// Tear patterns.
const (
	// LowBitsFirst leaves high nibble of the torn byte untouched.
	LowBitsFirst Tear = 0xF0
	// HighBitsFirst leaves low nibble of the torn byte untouched.
	HighBitsFirst Tear = 0x0F
)

// Tears lists all the tear patterns.
var Tears = []Tear{LowBitsFirst, HighBitsFirst}

func (t Tear) String() string {
	switch t {
	case LowBitsFirst:
		return "low-first"
	case HighBitsFirst:
		return "high-first"
	default:
		return fmt.Sprintf("tear-%02x", byte(t))
	}
}

// PowerCut simulates power loss after the budget of modifying operations is exhausted.
// The write hitting the limit is applied partially, then the medium fails all the operations.
type PowerCut struct {
	medium blocks.Medium
	budget int
	tear   Tear
	cut    bool
}

// NewPowerCut wraps the medium with power loss simulation.
func NewPowerCut(medium blocks.Medium, budget int, tear Tear) *PowerCut {
	return &PowerCut{medium: medium, budget: budget, tear: tear}
}

// Geometry returns geometry of the medium.
func (pc *PowerCut) Geometry() blocks.Geometry {
	return pc.medium.Geometry()
}

// Cut reports whether power has been lost.
func (pc *PowerCut) Cut() bool {
	return pc.cut
}

// Erase erases the block unless power is lost. Interrupted erase leaves the block untouched.
func (pc *PowerCut) Erase(block int) error {
	if !pc.consume() {
		return ErrPowerLoss
	}
	return pc.medium.Erase(block)
}

// Read reads from the block unless power is lost.
func (pc *PowerCut) Read(block, offset int, p []byte) error {
	if pc.cut {
		return ErrPowerLoss
	}
	return pc.medium.Read(block, offset, p)
}

// Write writes to the block. Interrupted write applies first half of bytes and the next one with bits of the
// tear pattern left set.
func (pc *PowerCut) Write(block, offset int, p []byte) error {
	if pc.cut {
		return ErrPowerLoss
	}
	if !pc.consume() {
		if len(p) > 0 {
			torn := make([]byte, len(p)/2+1)
			copy(torn, p)
			torn[len(torn)-1] = p[len(torn)-1] | byte(pc.tear)
			if err := pc.medium.Write(block, offset, torn); err != nil {
				return err
			}
		}
		return ErrPowerLoss
	}
	return pc.medium.Write(block, offset, p)
}

func (pc *PowerCut) consume() bool {
	if pc.cut {
		return false
	}
	if pc.budget == 0 {
		pc.cut = true
		return false
	}
	pc.budget--
	return true
}
