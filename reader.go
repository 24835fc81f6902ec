package norfs

import (
	"io"

	"github.com/pkg/errors"

	"github.com/outofforest/norfs/blocks"
	"github.com/outofforest/norfs/keystore"
	"github.com/outofforest/norfs/objectstore"
	"github.com/outofforest/norfs/persistence"
)

var _ io.Reader = &Reader{}

// Reader reads data stored under the path, chunk by chunk.
type Reader struct {
	store   *persistence.Store
	entry   keystore.Entry
	index   int
	current *objectstore.Reader
	read    int
}

func newReader(store *persistence.Store, e keystore.Entry) *Reader {
	return &Reader{
		store: store,
		entry: e,
	}
}

// Path returns the path of the object.
func (r *Reader) Path() string {
	return r.entry.Path
}

// Len returns the size of the data.
func (r *Reader) Len() int {
	return r.entry.Length
}

// Rewind moves the reader back to the beginning of the data.
func (r *Reader) Rewind() {
	r.index = 0
	r.current = nil
	r.read = 0
}

// Read reads the data.
func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	for {
		if r.current == nil {
			if r.index == len(r.entry.Data) {
				if r.read != r.entry.Length {
					return 0, errors.Wrapf(blocks.ErrFsCorrupted, "%q: %d bytes read, %d expected",
						r.entry.Path, r.read, r.entry.Length)
				}
				return 0, io.EOF
			}

			current, err := objectstore.NewReader(r.store, r.entry.Data[r.index])
			if err != nil {
				return 0, errors.WithMessagef(err, "reading %q", r.entry.Path)
			}
			r.current = current
			r.index++
		}

		n, err := r.current.Read(p[:min(len(p), r.entry.Length-r.read)])
		switch {
		case errors.Is(err, io.EOF):
			r.current = nil
			continue
		case err != nil:
			return 0, err
		}
		r.read += n
		if n == 0 && r.read == r.entry.Length && r.current.Remaining() > 0 {
			return 0, errors.Wrapf(blocks.ErrFsCorrupted, "%q: data exceeds %d bytes", r.entry.Path, r.entry.Length)
		}
		return n, nil
	}
}

// ReadAll reads the remaining data.
func (r *Reader) ReadAll() ([]byte, error) {
	b := make([]byte, r.entry.Length-r.read)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
