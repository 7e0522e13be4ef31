package index

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// TermHasher maps a (segment, centroid) pair to a 64-bit term key.
type TermHasher interface {
	Term(segment, centroid int) uint64
}

// TermHasherFunc adapts a function to TermHasher.
type TermHasherFunc func(segment, centroid int) uint64

// Term implements TermHasher.
func (f TermHasherFunc) Term(segment, centroid int) uint64 { return f(segment, centroid) }

// XXHasher hashes "<segment>_<centroid>" with xxhash64. It is the default.
type XXHasher struct{}

// Term implements TermHasher.
func (XXHasher) Term(segment, centroid int) uint64 {
	return xxhash.Sum64String(strconv.Itoa(segment) + "_" + strconv.Itoa(centroid))
}
