package keystore

import (
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/outofforest/photon"
	"github.com/pkg/errors"

	"github.com/outofforest/norfs/blocks"
	"github.com/outofforest/norfs/objectstore"
	"github.com/outofforest/norfs/persistence"
)

// PathHash returns the hash used to find metadata objects of the path.
func PathHash(path string) uint32 {
	return uint32(xxhash.Sum64String(path))
}

// ValidatePath verifies that path may be stored.
func ValidatePath(path string) error {
	if path == "" {
		return errors.New("path cannot be empty")
	}
	if len(path) > MaxPathLength {
		return errors.Errorf("maximum path length exceeded, maximum: %d, actual: %d", MaxPathLength, len(path))
	}
	return nil
}

// MetadataSize returns the payload size of metadata object.
func MetadataSize(geometry blocks.Geometry, pathLength, chunks int) int {
	return metadataHeaderSize + pathLength + (chunks+1)*geometry.ObjectLocationBytes()
}

// EncodeMetadata returns payload of metadata object.
func EncodeMetadata(geometry blocks.Geometry, path string, revision uint32, length int,
	data []objectstore.Location,
) []byte {
	b := make([]byte, 0, MetadataSize(geometry, len(path), len(data)))
	b = append(b, photon.NewFromValue(&metadataHeader{
		PathHash:   PathHash(path),
		Revision:   revision,
		DataLength: uint32(length),
		PathLength: uint16(len(path)),
		Reserved:   0xFFFF,
	}).B...)
	b = append(b, path...)
	for _, l := range data {
		b = objectstore.AppendLocation(geometry, b, l)
	}
	b = objectstore.AppendEndOfList(geometry, b)

	photon.NewFromBytes[metadataHeader](b).V.Checksum = checksum(b)
	return b
}

// DecodeMetadata decodes payload of metadata object.
func DecodeMetadata(geometry blocks.Geometry, b []byte) (Entry, error) {
	if len(b) < metadataHeaderSize {
		return Entry{}, errors.Wrapf(blocks.ErrFsCorrupted, "metadata of %d bytes is too short", len(b))
	}
	header := *photon.NewFromBytes[metadataHeader](b).V
	if header.Checksum != checksum(b) {
		return Entry{}, errors.Wrap(blocks.ErrFsCorrupted, "metadata checksum mismatch")
	}
	b = b[metadataHeaderSize:]

	pathLength := int(header.PathLength)
	if len(b) < pathLength {
		return Entry{}, errors.Wrapf(blocks.ErrFsCorrupted, "metadata path of %d bytes is truncated", pathLength)
	}
	e := Entry{
		Path:     string(b[:pathLength]),
		Revision: header.Revision,
		Length:   int(header.DataLength),
	}
	if PathHash(e.Path) != header.PathHash {
		return Entry{}, errors.Wrapf(blocks.ErrFsCorrupted, "path hash mismatch for %q", e.Path)
	}
	b = b[pathLength:]

	locationBytes := geometry.ObjectLocationBytes()
	for {
		if len(b) < locationBytes {
			return Entry{}, errors.Wrapf(blocks.ErrFsCorrupted, "location list of %q is not terminated", e.Path)
		}
		l, ok := objectstore.DecodeLocation(geometry, b)
		if !ok {
			return e, nil
		}
		if l.Block >= geometry.BlockCount || l.Offset >= geometry.ObjectAreaSize() {
			return Entry{}, errors.Wrapf(blocks.ErrFsCorrupted, "invalid location %s in metadata of %q", l, e.Path)
		}
		e.Data = append(e.Data, l)
		b = b[locationBytes:]
	}
}

// checksum computes checksum of metadata payload, skipping the checksum field itself.
func checksum(b []byte) uint64 {
	d := xxhash.New()
	_, _ = d.Write(b[:checksumOffset])
	_, _ = d.Write(b[checksumOffset+checksumSize:])
	return d.Sum64()
}

// Store finds metadata objects of paths.
type Store struct {
	store    *persistence.Store
	geometry blocks.Geometry
	infos    []persistence.BlockInfo
}

// New returns new key store.
func New(store *persistence.Store, infos []persistence.BlockInfo) *Store {
	return &Store{
		store:    store,
		geometry: store.Geometry(),
		infos:    infos,
	}
}

// Lookup returns the newest entry of the path and older entries left by interrupted operations.
func (s *Store) Lookup(path string) (Entry, []Entry, error) {
	hash := PathHash(path)
	var found []Entry
	err := s.forEachObject(blocks.MetadataBlockType, func(o objectstore.Object) error {
		header, ok, err := s.readMetadataHeader(o)
		if err != nil || !ok {
			return err
		}
		if header.PathHash != hash || int(header.PathLength) != len(path) {
			return nil
		}

		e, ok, err := s.readEntry(o)
		if err != nil || !ok {
			return err
		}
		if e.Path == path {
			found = append(found, e)
		}
		return nil
	})
	if err != nil {
		return Entry{}, nil, err
	}
	if len(found) == 0 {
		return Entry{}, nil, errors.Wrapf(blocks.ErrNotFound, "path %q", path)
	}

	newest := 0
	for i := range found {
		if found[i].Revision > found[newest].Revision {
			newest = i
		}
	}
	stale := append(found[:newest:newest], found[newest+1:]...)
	return found[newest], stale, nil
}

// Walk calls fn for the newest entry of each path, in path order.
func (s *Store) Walk(fn func(e Entry) error) error {
	latest, _, _, err := s.collect()
	if err != nil {
		return err
	}

	paths := make([]string, 0, len(latest))
	for path := range latest {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if err := fn(latest[path]); err != nil {
			return err
		}
	}
	return nil
}

// Delete deletes metadata object of the entry and then its data objects.
func (s *Store) Delete(e Entry) error {
	if err := s.deleteObject(e.Location); err != nil {
		return err
	}
	for _, l := range e.Data {
		if err := s.deleteObject(l); err != nil {
			return err
		}
	}
	return nil
}

// Sweep deletes objects left by operations interrupted by power loss: metadata objects superseded by newer
// revisions, metadata objects which can't be decoded and data objects not referenced by any metadata object.
func (s *Store) Sweep() (SweepResult, error) {
	var result SweepResult

	latest, stale, invalid, err := s.collect()
	if err != nil {
		return result, err
	}
	for _, e := range stale {
		if err := s.deleteObject(e.Location); err != nil {
			return result, err
		}
		result.StaleEntries++
	}
	for _, l := range invalid {
		if err := s.deleteObject(l); err != nil {
			return result, err
		}
		result.InvalidEntries++
	}

	referenced := map[objectstore.Location]struct{}{}
	for _, e := range latest {
		for _, l := range e.Data {
			referenced[l] = struct{}{}
		}
	}

	err = s.forEachObject(blocks.DataBlockType, func(o objectstore.Object) error {
		if _, exists := referenced[o.Location]; exists {
			return nil
		}
		if err := objectstore.UpdateState(s.store, o.Location, objectstore.FinalizedState,
			objectstore.DeletedState); err != nil {
			return err
		}
		result.OrphanObjects++
		return nil
	})
	return result, err
}

func (s *Store) collect() (map[string]Entry, []Entry, []objectstore.Location, error) {
	latest := map[string]Entry{}
	var stale []Entry
	var invalid []objectstore.Location
	err := s.forEachObject(blocks.MetadataBlockType, func(o objectstore.Object) error {
		e, ok, err := s.readEntry(o)
		if err != nil {
			return err
		}
		if !ok {
			invalid = append(invalid, o.Location)
			return nil
		}
		current, exists := latest[e.Path]
		switch {
		case !exists:
			latest[e.Path] = e
		case e.Revision > current.Revision:
			stale = append(stale, current)
			latest[e.Path] = e
		default:
			stale = append(stale, e)
		}
		return nil
	})
	return latest, stale, invalid, err
}

// forEachObject calls fn for each finalized object stored in blocks of the type.
func (s *Store) forEachObject(t blocks.BlockType, fn func(o objectstore.Object) error) error {
	for block, info := range s.infos {
		if !info.Header.IsKnown() || info.Header.Type != t {
			continue
		}
		it := objectstore.NewIterator(s.store, block)
		for {
			o, ok, err := it.Next()
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			if o.Header.State != objectstore.FinalizedState {
				continue
			}
			if err := fn(o); err != nil {
				return err
			}
		}
	}
	return nil
}

// readMetadataHeader reads the fixed part of metadata object. False is returned if object is too short
// to be a metadata object.
func (s *Store) readMetadataHeader(o objectstore.Object) (metadataHeader, bool, error) {
	if !o.Header.SizeKnown() || o.Header.PayloadSize < uint32(metadataHeaderSize) {
		return metadataHeader{}, false, nil
	}
	header := photon.NewFromValue(&metadataHeader{})
	if err := s.store.ReadData(o.Location.Block, o.DataOffset(s.geometry), header.B); err != nil {
		return metadataHeader{}, false, err
	}
	return *header.V, true, nil
}

// readEntry reads and decodes metadata object. False is returned if the object does not hold valid metadata.
// Such objects are left by deletions of unfinished objects interrupted by power loss.
func (s *Store) readEntry(o objectstore.Object) (Entry, bool, error) {
	payload, err := objectstore.ReadPayload(s.store, o.Location)
	if err != nil {
		if errors.Is(err, blocks.ErrFsCorrupted) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	e, err := DecodeMetadata(s.geometry, payload)
	if err != nil {
		return Entry{}, false, nil //nolint:nilerr // invalid metadata is reported as false
	}
	e.Location = o.Location
	return e, true, nil
}

func (s *Store) deleteObject(l objectstore.Location) error {
	header, err := objectstore.ReadHeader(s.store, l)
	if err != nil {
		return err
	}
	if header.State != objectstore.FinalizedState {
		return nil
	}
	return objectstore.UpdateState(s.store, l, objectstore.FinalizedState, objectstore.DeletedState)
}
