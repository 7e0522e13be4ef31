package mmap

import (
	"os"
	"sync/atomic"
)

// Mapping is a read-only mapping of a whole file.
type Mapping struct {
	r      *region
	closed atomic.Bool
}

// Open maps the file at path into memory as read-only.
// An empty file yields a mapping with no bytes.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	size := fi.Size()
	if size == 0 {
		return &Mapping{}, nil
	}
	if size < 0 || int64(int(size)) != size {
		return nil, ErrInvalidSize
	}

	r, err := osMap(f, 0, int(size), false)
	if err != nil {
		return nil, err
	}
	return &Mapping{r: r}, nil
}

// Close unmaps the memory. It is idempotent.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	return m.r.close()
}

// Bytes returns the mapped bytes, or nil after Close.
// The slice must not be used after Close.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() || m.r == nil {
		return nil
	}
	return m.r.data
}

// Size returns the size of the mapping in bytes.
func (m *Mapping) Size() int {
	return len(m.Bytes())
}

// Advise hints the kernel about the expected access pattern.
func (m *Mapping) Advise(pattern AccessPattern) error {
	if m.closed.Load() {
		return ErrClosed
	}
	return osAdvise(m.Bytes(), pattern)
}
