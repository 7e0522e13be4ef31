// Package persistence writes and reads the serialized artifacts of a
// quantizer, an index and a searcher.
//
// Every artifact is a self-describing blob: a fixed header naming the codec
// and compression, a CRC32 of the stored payload, then the payload itself.
// Files are replaced atomically through a temp file and rename.
package persistence
