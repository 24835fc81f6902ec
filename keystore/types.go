package keystore

import (
	"unsafe"

	"github.com/outofforest/norfs/objectstore"
)

// MaxPathLength is the maximum length of the path.
const MaxPathLength = 0xFFFF

const (
	// metadataHeaderSize is the size of the fixed part of metadata object payload.
	metadataHeaderSize = int(unsafe.Sizeof(metadataHeader{}))

	checksumOffset = int(unsafe.Offsetof(metadataHeader{}.Checksum))
	checksumSize   = int(unsafe.Sizeof(metadataHeader{}.Checksum))
)

// metadataHeader precedes the path and the list of data object locations in metadata object.
type metadataHeader struct {
	PathHash   uint32
	Revision   uint32
	DataLength uint32
	PathLength uint16
	Reserved   uint16
	Checksum   uint64
}

// Entry is the decoded metadata object.
type Entry struct {
	Location objectstore.Location
	Path     string
	Revision uint32
	Length   int
	Data     []objectstore.Location
}

// SweepResult summarizes objects deleted by the sweep.
type SweepResult struct {
	StaleEntries   int
	InvalidEntries int
	OrphanObjects  int
}
