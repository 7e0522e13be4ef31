//go:build windows

package mmap

import (
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

// MapViewOfFile offsets must be multiples of the allocation granularity.
var granularity int64 = 64 << 10

func osMap(f *os.File, off int64, size int, writable bool) (*region, error) {
	prot := uint32(windows.PAGE_READONLY)
	access := uint32(windows.FILE_MAP_READ)
	if writable {
		prot = windows.PAGE_READWRITE
		access = windows.FILE_MAP_WRITE
	}

	end := off + int64(size)
	h, err := windows.CreateFileMapping(windows.Handle(f.Fd()), nil, prot, uint32(end>>32), uint32(end), nil)
	if err != nil {
		return nil, err
	}
	// The view holds its own reference to the mapping object.
	defer windows.CloseHandle(h)

	addr, err := windows.MapViewOfFile(h, access, uint32(off>>32), uint32(off), uintptr(size))
	if err != nil {
		return nil, err
	}

	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
	return &region{
		data:  data,
		unmap: func() error { return windows.UnmapViewOfFile(addr) },
		flush: func() error { return windows.FlushViewOfFile(addr, uintptr(size)) },
	}, nil
}

func osAdvise(data []byte, pattern AccessPattern) error {
	// Windows has no madvise equivalent; the page cache still handles
	// sequential scans well.
	_ = data
	_ = pattern
	return nil
}
