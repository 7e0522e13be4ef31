// Package mmap provides memory-mapped file access.
//
// Besides whole-file read-only mappings (Open), it offers two streaming
// abstractions over length-prefixed records so callers never touch mapped
// memory directly:
//
//   - Writer appends records through a fixed-capacity mapped window that is
//     advanced to the current end of data whenever its headroom drops below
//     a low-water mark. The file is truncated to the written size on Close.
//   - Reader walks the records through bounded windows, remapping forward
//     when a length prefix or a payload would straddle the window edge.
//
// A record is a big-endian uint32 length followed by that many bytes.
//
// Window offsets are aligned to the platform mapping granularity (the page
// size on Unix, 64 KiB on Windows).
package mmap
