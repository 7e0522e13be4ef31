//go:build unix

package mmap

import (
	"os"

	"golang.org/x/sys/unix"
)

var granularity = int64(os.Getpagesize())

func osMap(f *os.File, off int64, size int, writable bool) (*region, error) {
	prot := unix.PROT_READ
	if writable {
		prot |= unix.PROT_WRITE
	}

	data, err := unix.Mmap(int(f.Fd()), off, size, prot, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}

	return &region{
		data:  data,
		unmap: func() error { return unix.Munmap(data) },
		flush: func() error { return unix.Msync(data, unix.MS_SYNC) },
	}, nil
}

func osAdvise(data []byte, pattern AccessPattern) error {
	if len(data) == 0 {
		return nil
	}

	var advice int
	switch pattern {
	case AccessSequential:
		advice = unix.MADV_SEQUENTIAL
	case AccessRandom:
		advice = unix.MADV_RANDOM
	case AccessWillNeed:
		advice = unix.MADV_WILLNEED
	case AccessDontNeed:
		advice = unix.MADV_DONTNEED
	default:
		advice = unix.MADV_NORMAL
	}

	// The hint is advisory; an unaligned slice is not worth failing over.
	err := unix.Madvise(data, advice)
	if err == unix.EINVAL {
		return nil
	}
	return err
}
