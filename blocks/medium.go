package blocks

// Medium is the raw flash medium.
//
// Write performs AND-merge with the existing content: it may only clear bits. Erase sets all the bits
// of the block back to one.
type Medium interface {
	Geometry() Geometry
	Erase(block int) error
	Read(block, offset int, p []byte) error
	Write(block, offset int, p []byte) error
}
