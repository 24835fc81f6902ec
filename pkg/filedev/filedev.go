package filedev

import (
	"io"
	"os"

	"github.com/ncw/directio"
	"github.com/pkg/errors"

	"github.com/outofforest/norfs/blocks"
)

var _ blocks.Medium = &FileDev{}

// FileDev uses image file as NOR flash device.
// Each operation reads the whole block, so the same buffer serves both buffered and direct I/O.
type FileDev struct {
	file     *os.File
	geometry blocks.Geometry
	buf      []byte
}

// Create creates new image file with all the blocks erased.
func Create(path string, geometry blocks.Geometry, direct bool) (*FileDev, error) {
	if err := geometry.Validate(); err != nil {
		return nil, err
	}

	fd, err := open(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, geometry, direct)
	if err != nil {
		return nil, err
	}
	for block := range geometry.BlockCount {
		if err := fd.Erase(block); err != nil {
			_ = fd.Close()
			return nil, err
		}
	}
	return fd, nil
}

// Open opens existing image file.
func Open(path string, geometry blocks.Geometry, direct bool) (*FileDev, error) {
	if err := geometry.Validate(); err != nil {
		return nil, err
	}

	fd, err := open(path, os.O_RDWR, geometry, direct)
	if err != nil {
		return nil, err
	}

	size, err := fd.file.Seek(0, io.SeekEnd)
	if err != nil {
		_ = fd.Close()
		return nil, errors.WithStack(err)
	}
	if expected := int64(geometry.BlockSize) * int64(geometry.BlockCount); size != expected {
		_ = fd.Close()
		return nil, errors.Errorf("image size %d does not match geometry, expected: %d", size, expected)
	}
	return fd, nil
}

func open(path string, flag int, geometry blocks.Geometry, direct bool) (*FileDev, error) {
	var file *os.File
	var err error
	if direct {
		if geometry.BlockSize%directio.BlockSize != 0 {
			return nil, errors.Errorf("block size %d must be a multiple of %d for direct i/o",
				geometry.BlockSize, directio.BlockSize)
		}
		file, err = directio.OpenFile(path, flag, 0o600)
	} else {
		file, err = os.OpenFile(path, flag, 0o600)
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return &FileDev{
		file:     file,
		geometry: geometry,
		buf:      directio.AlignedBlock(geometry.BlockSize),
	}, nil
}

// Geometry returns geometry of the device.
func (fd *FileDev) Geometry() blocks.Geometry {
	return fd.geometry
}

// Erase sets all the bits of the block.
func (fd *FileDev) Erase(block int) error {
	if err := fd.checkRange(block, 0, 0); err != nil {
		return err
	}
	for i := range fd.buf {
		fd.buf[i] = 0xFF
	}
	return fd.writeBlock(block)
}

// Read reads data from the block.
func (fd *FileDev) Read(block, offset int, p []byte) error {
	if err := fd.checkRange(block, offset, len(p)); err != nil {
		return err
	}
	if err := fd.readBlock(block); err != nil {
		return err
	}
	copy(p, fd.buf[offset:])
	return nil
}

// Write clears bits which are cleared in p.
func (fd *FileDev) Write(block, offset int, p []byte) error {
	if err := fd.checkRange(block, offset, len(p)); err != nil {
		return err
	}
	if err := fd.readBlock(block); err != nil {
		return err
	}
	for i, b := range p {
		fd.buf[offset+i] &= b
	}
	return fd.writeBlock(block)
}

// Sync syncs data to the file.
func (fd *FileDev) Sync() error {
	if err := fd.file.Sync(); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// Close syncs and closes the file.
func (fd *FileDev) Close() error {
	if err := fd.Sync(); err != nil {
		_ = fd.file.Close()
		return err
	}
	return errors.WithStack(fd.file.Close())
}

func (fd *FileDev) checkRange(block, offset, n int) error {
	if block < 0 || block >= fd.geometry.BlockCount {
		return errors.Errorf("invalid block: %d", block)
	}
	if offset < 0 || n < 0 || offset+n > fd.geometry.BlockSize {
		return errors.Errorf("invalid range: offset %d, length %d, block size %d", offset, n, fd.geometry.BlockSize)
	}
	return nil
}

func (fd *FileDev) readBlock(block int) error {
	if _, err := fd.file.ReadAt(fd.buf, int64(block)*int64(fd.geometry.BlockSize)); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

func (fd *FileDev) writeBlock(block int) error {
	if _, err := fd.file.WriteAt(fd.buf, int64(block)*int64(fd.geometry.BlockSize)); err != nil {
		return errors.WithStack(err)
	}
	return nil
}
