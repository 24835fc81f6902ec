package gc

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/outofforest/norfs/blocks"
	"github.com/outofforest/norfs/objectstore"
	"github.com/outofforest/norfs/persistence"
)

// Result summarizes the work done by the collector.
type Result struct {
	DeletedObjects  int
	FormattedBlocks int
	UnusableBlocks  int
}

// Collector reclaims space occupied by interrupted and deleted objects.
type Collector struct {
	store  *persistence.Store
	infos  []persistence.BlockInfo
	logger zerolog.Logger
}

// New returns new collector operating on the block states built on mount.
func New(store *persistence.Store, infos []persistence.BlockInfo, logger zerolog.Logger) *Collector {
	return &Collector{
		store:  store,
		infos:  infos,
		logger: logger,
	}
}

// Run runs all the passes. Running it again on unchanged storage does nothing.
func (c *Collector) Run() (Result, error) {
	return c.run(false)
}

// Reclaim runs all the passes and additionally formats every block containing only deleted objects,
// even if it still has free space.
func (c *Collector) Reclaim() (Result, error) {
	return c.run(true)
}

func (c *Collector) run(reclaim bool) (Result, error) {
	var result Result

	if err := c.deleteInvalidObjects(&result); err != nil {
		return result, err
	}
	if err := c.eraseInvalidFinishedBlocks(&result); err != nil {
		return result, err
	}
	if err := c.eraseFullFinishedBlocks(&result, reclaim); err != nil {
		return result, err
	}

	c.logger.Debug().
		Int("deletedObjects", result.DeletedObjects).
		Int("formattedBlocks", result.FormattedBlocks).
		Int("unusableBlocks", result.UnusableBlocks).
		Msg("Garbage collection finished")

	return result, nil
}

// deleteInvalidObjects deletes objects left allocated by interrupted writes.
func (c *Collector) deleteInvalidObjects(result *Result) error {
	geometry := c.store.Geometry()
	for block := range c.infos {
		info := &c.infos[block]
		switch info.Header.Kind {
		case blocks.EmptyHeaderKind:
			continue
		case blocks.UnknownHeaderKind:
			return errors.Wrapf(blocks.ErrFsCorrupted, "block %d has unknown header", block)
		}
		if info.Unusable {
			continue
		}

		it := objectstore.NewIterator(c.store, block)
		for {
			o, ok, err := it.Next()
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			if o.Header.State != objectstore.AllocatedState {
				continue
			}

			if next, ok, err := it.Next(); err != nil {
				return err
			} else if ok {
				return errors.Wrapf(blocks.ErrFsCorrupted, "allocated object %s is followed by object %s",
					o.Location, next.Location)
			}

			if !o.Header.SizeKnown() {
				if err := objectstore.SetPayloadSize(c.store, o.Location,
					info.UsedBytes-o.DataOffset(geometry)); err != nil {
					return err
				}
			}
			if err := objectstore.UpdateState(c.store, o.Location, objectstore.AllocatedState,
				objectstore.DeletedState); err != nil {
				return err
			}

			info.AllowAlloc = true
			result.DeletedObjects++
			c.logger.Debug().Stringer("object", o.Location).Msg("Interrupted object deleted")
			break
		}
	}
	return nil
}

// eraseInvalidFinishedBlocks formats blocks not verified for allocation if all their objects are deleted.
func (c *Collector) eraseInvalidFinishedBlocks(result *Result) error {
	for block := range c.infos {
		info := &c.infos[block]
		if info.AllowAlloc || info.Unusable || !info.Header.IsKnown() {
			continue
		}

		deleted, objects, err := c.allDeleted(block)
		if err != nil {
			return err
		}
		if !deleted || objects == 0 {
			info.AllowAlloc = true
			continue
		}
		if err := c.format(block, result); err != nil {
			return err
		}
	}
	return nil
}

// eraseFullFinishedBlocks formats blocks with no room left if all their objects are deleted.
func (c *Collector) eraseFullFinishedBlocks(result *Result, reclaim bool) error {
	geometry := c.store.Geometry()
	minObject := geometry.ObjectHeaderBytes() + geometry.Align(1)
	for block := range c.infos {
		info := &c.infos[block]
		if info.Unusable || !info.Header.IsKnown() || info.UsedBytes == 0 {
			continue
		}
		if !reclaim && info.FreeBytes(geometry) >= minObject {
			continue
		}

		deleted, _, err := c.allDeleted(block)
		if err != nil {
			return err
		}
		if !deleted {
			continue
		}
		if err := c.format(block, result); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collector) allDeleted(block int) (bool, int, error) {
	var objects int
	it := objectstore.NewIterator(c.store, block)
	for {
		o, ok, err := it.Next()
		if err != nil {
			return false, 0, err
		}
		if !ok {
			return true, objects, nil
		}
		if o.Header.State != objectstore.DeletedState {
			return false, 0, nil
		}
		objects++
	}
}

func (c *Collector) format(block int, result *Result) error {
	header, err := c.store.FormatBlock(block)
	if err != nil {
		if errors.Is(err, blocks.ErrBlockUnusable) {
			c.infos[block].Unusable = true
			c.infos[block].AllowAlloc = false
			result.UnusableBlocks++
			c.logger.Warn().Int("block", block).Msg("Block reached maximum erase count")
			return nil
		}
		return err
	}

	c.infos[block].Formatted(header)
	result.FormattedBlocks++
	c.logger.Debug().Int("block", block).Uint32("eraseCount", header.EraseCount).Msg("Block formatted")
	return nil
}
