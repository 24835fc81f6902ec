package norfs

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/outofforest/norfs/blocks"
	"github.com/outofforest/norfs/cache"
	"github.com/outofforest/norfs/gc"
	"github.com/outofforest/norfs/keystore"
	"github.com/outofforest/norfs/objectstore"
	"github.com/outofforest/norfs/persistence"
	"github.com/outofforest/norfs/spacestore"
)

// Storage stores objects under paths on raw flash medium.
// It is not safe for concurrent use.
type Storage struct {
	logger zerolog.Logger
	cache  *cache.Cache
	store  *persistence.Store
	infos  []persistence.BlockInfo
	space  *spacestore.Space
	keys   *keystore.Store
}

// Format erases all the blocks of the medium and writes fresh headers.
func Format(m blocks.Medium, opts ...Option) error {
	cfg := newConfig(opts)
	store, err := persistence.New(m)
	if err != nil {
		return err
	}

	unusable, err := store.FormatStorage()
	if err != nil {
		return err
	}
	for _, block := range unusable {
		cfg.logger.Warn().Int("block", block).Msg("Block reached maximum erase count")
	}
	cfg.logger.Info().
		Int("blocks", store.Geometry().BlockCount).
		Int("unusable", len(unusable)).
		Msg("Storage formatted")
	return nil
}

// Mount indexes blocks of the formatted medium and repairs damage caused by power loss.
func Mount(m blocks.Medium, opts ...Option) (*Storage, error) {
	cfg := newConfig(opts)

	var c *cache.Cache
	if cfg.cache {
		c = cache.New(m, cfg.pageSize, cfg.pages)
		m = c
	}

	store, err := persistence.New(m)
	if err != nil {
		return nil, err
	}

	geometry := store.Geometry()
	infos := make([]persistence.BlockInfo, geometry.BlockCount)
	var formatted bool
	for block := range infos {
		info, err := objectstore.ScanBlock(store, block)
		if err != nil {
			return nil, err
		}
		infos[block] = info
		formatted = formatted || info.Header.IsKnown()
	}
	if !formatted {
		return nil, errors.WithStack(blocks.ErrNotFormatted)
	}

	s := &Storage{
		logger: cfg.logger,
		cache:  c,
		store:  store,
		infos:  infos,
		space:  spacestore.New(store, infos),
		keys:   keystore.New(store, infos),
	}

	gcResult, err := s.collector().Run()
	if err != nil {
		return nil, err
	}
	sweepResult, err := s.keys.Sweep()
	if err != nil {
		return nil, err
	}
	if sweepResult != (keystore.SweepResult{}) {
		if _, err := s.collector().Run(); err != nil {
			return nil, err
		}
	}

	s.logger.Info().
		Int("blocks", geometry.BlockCount).
		Int("interruptedObjects", gcResult.DeletedObjects).
		Int("staleEntries", sweepResult.StaleEntries).
		Int("invalidEntries", sweepResult.InvalidEntries).
		Int("orphanObjects", sweepResult.OrphanObjects).
		Int("freeBytes", s.space.FreeBytes()).
		Msg("Storage mounted")

	return s, nil
}

// FormatAndMount formats the medium and mounts it.
func FormatAndMount(m blocks.Medium, opts ...Option) (*Storage, error) {
	if err := Format(m, opts...); err != nil {
		return nil, err
	}
	return Mount(m, opts...)
}

// Open mounts the medium, formatting it first if it has never been formatted.
func Open(m blocks.Medium, opts ...Option) (*Storage, error) {
	s, err := Mount(m, opts...)
	if errors.Is(err, blocks.ErrNotFormatted) {
		cfg := newConfig(opts)
		cfg.logger.Info().Msg("Storage is not formatted, formatting")
		return FormatAndMount(m, opts...)
	}
	return s, err
}

// Store stores data under the path, replacing the previous version.
// New version is finalized before the old one is deleted, so one of them survives power loss.
func (s *Storage) Store(path string, data []byte) error {
	if err := keystore.ValidatePath(path); err != nil {
		return err
	}
	if int64(len(data)) > 0xFFFFFFFF {
		return errors.Wrapf(blocks.ErrObjectTooLarge, "%d bytes", len(data))
	}

	old, stale, err := s.keys.Lookup(path)
	exists := err == nil
	if err != nil && !errors.Is(err, blocks.ErrNotFound) {
		return err
	}

	geometry := s.store.Geometry()
	locations := make([]objectstore.Location, 0, len(data)/geometry.ObjectAreaSize()+1)
	for remaining := data; len(remaining) > 0; {
		minChunk := min(len(remaining), geometry.ObjectLocationBytes()+1)
		l, capacity, err := s.allocate(blocks.DataBlockType, minChunk, len(remaining))
		if err != nil {
			s.discard(locations)
			return err
		}
		n := min(capacity, len(remaining))
		if err := s.writeObject(l, remaining[:n]); err != nil {
			s.discard(locations)
			return err
		}
		locations = append(locations, l)
		remaining = remaining[n:]
	}

	var revision uint32
	if exists {
		revision = old.Revision + 1
	}
	metadata := keystore.EncodeMetadata(geometry, path, revision, len(data), locations)
	l, _, err := s.allocate(blocks.MetadataBlockType, len(metadata), len(metadata))
	if err != nil {
		s.discard(locations)
		return err
	}
	if err := s.writeObject(l, metadata); err != nil {
		s.discard(locations)
		return err
	}

	if exists {
		for _, e := range append(stale, old) {
			if err := s.keys.Delete(e); err != nil {
				return err
			}
		}
	}

	s.logger.Debug().
		Str("path", path).
		Int("bytes", len(data)).
		Int("chunks", len(locations)).
		Uint32("revision", revision).
		Stringer("metadata", l).
		Msg("Object stored")
	return nil
}

// Read returns reader of the data stored under the path.
func (s *Storage) Read(path string) (*Reader, error) {
	e, _, err := s.keys.Lookup(path)
	if err != nil {
		return nil, err
	}
	return newReader(s.store, e), nil
}

// ReadAll returns the data stored under the path.
func (s *Storage) ReadAll(path string) ([]byte, error) {
	r, err := s.Read(path)
	if err != nil {
		return nil, err
	}
	return r.ReadAll()
}

// Exists returns true if object is stored under the path.
func (s *Storage) Exists(path string) (bool, error) {
	_, _, err := s.keys.Lookup(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, blocks.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Delete deletes the object stored under the path. Space is reclaimed later by the garbage collector.
func (s *Storage) Delete(path string) error {
	e, stale, err := s.keys.Lookup(path)
	if err != nil {
		return err
	}
	for _, e := range append(stale, e) {
		if err := s.keys.Delete(e); err != nil {
			return err
		}
	}
	s.logger.Debug().Str("path", path).Msg("Object deleted")
	return nil
}

// Walk calls fn for each stored path, in path order.
func (s *Storage) Walk(fn func(path string, length int) error) error {
	return s.keys.Walk(func(e keystore.Entry) error {
		return fn(e.Path, e.Length)
	})
}

// GC formats blocks containing only deleted objects.
func (s *Storage) GC() error {
	_, err := s.collector().Reclaim()
	return err
}

// FreeBytes returns the number of bytes available for new objects, including headers.
func (s *Storage) FreeBytes() int {
	return s.space.FreeBytes()
}

// CacheStats returns statistics of the read cache.
func (s *Storage) CacheStats() cache.Stats {
	if s.cache == nil {
		return cache.Stats{}
	}
	return s.cache.Stats()
}

func (s *Storage) collector() *gc.Collector {
	return gc.New(s.store, s.infos, s.logger)
}

// allocate finds space for the object, collecting garbage once if storage is full.
func (s *Storage) allocate(t blocks.BlockType, minPayload, payload int) (objectstore.Location, int, error) {
	l, capacity, err := s.space.Allocate(t, minPayload, payload)
	if !errors.Is(err, blocks.ErrStorageFull) {
		return l, capacity, err
	}

	s.logger.Debug().Stringer("type", t).Msg("Storage is full, collecting garbage")
	if _, err := s.collector().Reclaim(); err != nil {
		return objectstore.Location{}, 0, err
	}
	return s.space.Allocate(t, minPayload, payload)
}

func (s *Storage) writeObject(l objectstore.Location, payload []byte) error {
	w, err := objectstore.NewWriter(s.store, l)
	if err != nil {
		s.space.Fail(l.Block)
		return err
	}
	if err := w.Allocate(); err != nil {
		s.space.Fail(l.Block)
		return err
	}
	if _, err := w.Write(payload); err != nil {
		s.abandon(w)
		return err
	}
	size, err := w.Finalize()
	if err != nil {
		s.abandon(w)
		return err
	}
	s.space.Commit(l, size)
	return nil
}

// abandon deletes object which couldn't be finished.
func (s *Storage) abandon(w *objectstore.Writer) {
	l := w.Location()
	if err := w.Delete(); err != nil {
		s.logger.Warn().Err(err).Stringer("object", l).Msg("Deleting unfinished object failed")
		s.space.Fail(l.Block)
		return
	}
	geometry := s.store.Geometry()
	s.space.Commit(l, geometry.ObjectHeaderBytes()+geometry.Align(w.Len()))
}

// discard deletes data objects written by failed store.
func (s *Storage) discard(locations []objectstore.Location) {
	for _, l := range locations {
		if err := objectstore.UpdateState(s.store, l, objectstore.FinalizedState,
			objectstore.DeletedState); err != nil {
			s.logger.Warn().Err(err).Stringer("object", l).Msg("Deleting data object failed")
			return
		}
	}
}

func newConfig(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
