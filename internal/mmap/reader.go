package mmap

import (
	"encoding/binary"
	"io"
	"os"
)

// Reader walks length-prefixed records through bounded mapped windows.
// It is not safe for concurrent use.
type Reader struct {
	f      *os.File
	size   int64
	window int64
	r      *region
	base   int64 // file offset of r.data[0]
	off    int64 // read offset in the file
	remaps int
	closed bool
}

// OpenReader opens the file at path for sequential record reads.
// window bounds the size of each mapping; it is rounded up to at least
// twice the mapping granularity.
func OpenReader(path string, window int64) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	return &Reader{
		f:      f,
		size:   fi.Size(),
		window: alignUp(max(window, 2*granularity)),
	}, nil
}

// Size returns the file size in bytes.
func (r *Reader) Size() int64 { return r.size }

// Offset returns the current read offset.
func (r *Reader) Offset() int64 { return r.off }

// Remaps returns how many times the window was moved after the first mapping.
func (r *Reader) Remaps() int { return r.remaps }

// Next returns the next record payload. The slice aliases mapped memory and
// is valid only until the next call to Next or Close.
// It returns io.EOF after the last record and ErrTruncatedRecord if the
// file ends inside a record.
func (r *Reader) Next() ([]byte, error) {
	if r.closed {
		return nil, ErrClosed
	}
	if r.off == r.size {
		return nil, io.EOF
	}

	hdr, err := r.view(RecordHeaderSize)
	if err != nil {
		return nil, err
	}
	n := int64(binary.BigEndian.Uint32(hdr))
	r.off += RecordHeaderSize

	if n == 0 {
		return []byte{}, nil
	}

	payload, err := r.view(n)
	if err != nil {
		return nil, err
	}
	r.off += n
	return payload, nil
}

// view returns n bytes at the current offset, moving the window forward if
// they are not fully mapped.
func (r *Reader) view(n int64) ([]byte, error) {
	if r.off+n > r.size {
		return nil, ErrTruncatedRecord
	}

	if r.r != nil && r.off >= r.base && r.off+n <= r.base+int64(len(r.r.data)) {
		start := r.off - r.base
		return r.r.data[start : start+n : start+n], nil
	}

	aligned := alignDown(r.off)
	delta := r.off - aligned
	length := max(r.window, delta+n)
	if aligned+length > r.size {
		length = r.size - aligned
	}
	if int64(int(length)) != length {
		return nil, ErrInvalidSize
	}

	if r.r != nil {
		if err := r.r.close(); err != nil {
			return nil, err
		}
		r.r = nil
		r.remaps++
	}

	m, err := osMap(r.f, aligned, int(length), false)
	if err != nil {
		return nil, err
	}
	r.r = m
	r.base = aligned

	return m.data[delta : delta+n : delta+n], nil
}

// Close unmaps the current window and closes the file. It is idempotent.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	var err error
	if r.r != nil {
		err = r.r.close()
		r.r = nil
	}
	if cerr := r.f.Close(); err == nil {
		err = cerr
	}
	return err
}
