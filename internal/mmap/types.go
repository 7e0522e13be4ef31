package mmap

import "errors"

// AccessPattern provides hints to the kernel about how the data will be accessed.
type AccessPattern int

const (
	// AccessDefault is the default access pattern (no specific advice).
	AccessDefault AccessPattern = iota
	// AccessSequential expects data to be accessed sequentially.
	AccessSequential
	// AccessRandom expects data to be accessed randomly.
	AccessRandom
	// AccessWillNeed expects data to be accessed in the near future.
	AccessWillNeed
	// AccessDontNeed expects data to not be accessed in the near future.
	AccessDontNeed
)

// RecordHeaderSize is the size of a record's length prefix.
const RecordHeaderSize = 4

var (
	// ErrClosed is returned when using a closed mapping, writer or reader.
	ErrClosed = errors.New("mmap: mapping is closed")
	// ErrInvalidSize is returned when the file size is invalid (e.g. negative or too large).
	ErrInvalidSize = errors.New("mmap: invalid file size")
	// ErrTruncatedRecord is returned when a record extends past the end of the file.
	ErrTruncatedRecord = errors.New("mmap: truncated record")
	// ErrRecordTooLarge is returned when a payload does not fit a uint32 length.
	ErrRecordTooLarge = errors.New("mmap: record too large")
)

// region is one mapped window of a file.
type region struct {
	data  []byte
	unmap func() error
	flush func() error
}

func (r *region) close() error {
	if r == nil || r.unmap == nil {
		return nil
	}
	return r.unmap()
}

func alignDown(off int64) int64 {
	return off &^ (granularity - 1)
}

func alignUp(n int64) int64 {
	return (n + granularity - 1) &^ (granularity - 1)
}
