package mmap

import (
	"encoding/binary"
	"math"
	"os"
)

// WriterConfig sizes the mapped window of a Writer.
type WriterConfig struct {
	// Capacity is the size of each mapped window in bytes.
	Capacity int64
	// LowWater is the headroom below which the window is advanced.
	LowWater int64
}

// DefaultWriterConfig maps 500 MB windows and advances them once less than
// 250 MB of headroom remains.
var DefaultWriterConfig = WriterConfig{
	Capacity: 500 << 20,
	LowWater: 250 << 20,
}

func (c WriterConfig) normalize() WriterConfig {
	if c.Capacity <= 0 {
		c.Capacity = DefaultWriterConfig.Capacity
	}
	if c.LowWater < 0 || c.LowWater >= c.Capacity {
		c.LowWater = c.Capacity / 2
	}
	return c
}

// Writer appends bytes to a file through a growable mapped window.
// It is not safe for concurrent use.
type Writer struct {
	f      *os.File
	cfg    WriterConfig
	r      *region
	base   int64 // file offset of r.data[0]
	pos    int64 // write offset within r.data
	size   int64 // bytes written
	remaps int
	closed bool
}

// Create creates (or truncates) the file at path and returns a Writer for it.
func Create(path string, cfg WriterConfig) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	return &Writer{f: f, cfg: cfg.normalize()}, nil
}

// Size returns the number of bytes written so far.
func (w *Writer) Size() int64 { return w.size }

// Remaps returns how many times the window was moved after the first mapping.
func (w *Writer) Remaps() int { return w.remaps }

// Write appends p. It implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	if err := w.ensure(int64(len(p))); err != nil {
		return 0, err
	}
	copy(w.r.data[w.pos:], p)
	w.pos += int64(len(p))
	w.size += int64(len(p))
	return len(p), nil
}

// WriteRecord appends a big-endian uint32 length prefix followed by payload.
func (w *Writer) WriteRecord(payload []byte) error {
	if w.closed {
		return ErrClosed
	}
	if uint64(len(payload)) > math.MaxUint32 {
		return ErrRecordTooLarge
	}
	n := int64(RecordHeaderSize + len(payload))
	if err := w.ensure(n); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(w.r.data[w.pos:], uint32(len(payload)))
	copy(w.r.data[w.pos+RecordHeaderSize:], payload)
	w.pos += n
	w.size += n
	return nil
}

// ensure makes room for n more bytes, moving the window to the current end
// of data when the headroom is below n or below the low-water mark.
func (w *Writer) ensure(n int64) error {
	if w.r != nil {
		room := int64(len(w.r.data)) - w.pos
		if room >= n && room >= w.cfg.LowWater {
			return nil
		}
	}

	aligned := alignDown(w.size)
	delta := w.size - aligned
	window := alignUp(max(w.cfg.Capacity, delta+n+w.cfg.LowWater))
	if int64(int(window)) != window {
		return ErrInvalidSize
	}

	if w.r != nil {
		if err := w.r.close(); err != nil {
			return err
		}
		w.r = nil
		w.remaps++
	}

	if err := w.f.Truncate(aligned + window); err != nil {
		return err
	}

	r, err := osMap(w.f, aligned, int(window), true)
	if err != nil {
		return err
	}

	w.r = r
	w.base = aligned
	w.pos = delta
	return nil
}

// Close flushes the window, trims the file to the written size and closes it.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if w.r != nil {
		keep(w.r.flush())
		keep(w.r.close())
		w.r = nil
	}
	keep(w.f.Truncate(w.size))
	keep(w.f.Sync())
	keep(w.f.Close())
	return firstErr
}
