package objectstore

import (
	"github.com/pkg/errors"

	"github.com/outofforest/norfs/blocks"
)

// State is the state of the object.
// States are ordered. Pattern of each state is a bit subset of the previous one, so moving forward requires
// clearing bits only.
type State byte

// Object states.
const (
	FreeState State = iota
	AllocatedState
	FinalizedState
	DeletedState
)

func (s State) String() string {
	switch s {
	case FreeState:
		return "free"
	case AllocatedState:
		return "allocated"
	case FinalizedState:
		return "finalized"
	case DeletedState:
		return "deleted"
	default:
		return "invalid"
	}
}

var bitPatterns = [...]byte{0xFF, 0xFE, 0xFC, 0x00}

// EncodeState returns the state field of the object header.
// On word granularity each transition clears one of three words.
func EncodeState(geometry blocks.Geometry, s State) []byte {
	if !geometry.Granularity.IsWord() {
		return []byte{bitPatterns[s]}
	}

	w := geometry.Granularity.Width()
	b := make([]byte, 3*w)
	for i := range b {
		if i/w >= int(s) {
			b[i] = 0xFF
		}
	}
	return b
}

// DecodeState returns the most advanced state whose pattern covers the observed bits.
// Bits cleared beyond that pattern must belong to the next transition, as left by an interrupted write.
// On bit granularity allocated object may also be moved straight to deleted state. Interrupted write may then
// clear any bits, so such pattern is reported as allocated and the deletion is repeated.
// Any other pattern can't be produced by clearing bits and means the storage is corrupted.
func DecodeState(geometry blocks.Geometry, b []byte) (State, error) {
	for s := DeletedState; ; s-- {
		pattern := EncodeState(geometry, s)
		if !isSubset(b, pattern) {
			continue
		}
		if s == DeletedState || isSubset(EncodeState(geometry, s+1), b) {
			return s, nil
		}
		if s == AllocatedState && !geometry.Granularity.IsWord() {
			return s, nil
		}
		return 0, errors.Wrapf(blocks.ErrFsCorrupted, "invalid object state pattern %x", b)
	}
}

// isSubset returns true if all the bits set in a are also set in b.
func isSubset(a, b []byte) bool {
	for i := range a {
		if a[i]&^b[i] != 0 {
			return false
		}
	}
	return true
}
