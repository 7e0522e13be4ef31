package vecsearch

import (
	"errors"

	"github.com/hupe1980/vecsearch/index"
	"github.com/hupe1980/vecsearch/quantization"
)

// Errors surfaced by the Searcher, re-exported so callers need not import
// the lower packages.
type (
	// ErrDimensionMismatch reports a vector of the wrong dimension.
	ErrDimensionMismatch = quantization.ErrDimensionMismatch
	// ErrInvalidConfig reports a quantizer configuration that cannot work.
	ErrInvalidConfig = quantization.ErrInvalidConfig
	// ErrTopNExceedsCentroids reports a clusterTopn above the centroid count.
	ErrTopNExceedsCentroids = quantization.ErrTopNExceedsCentroids
	// ErrLengthMismatch reports id and text slices of different lengths.
	ErrLengthMismatch = index.ErrLengthMismatch
)

var (
	// ErrNotTrained is returned when the quantizer has no centroids.
	ErrNotTrained = quantization.ErrNotTrained
	// ErrDeleted is returned when adding to an id deleted since the last Store.
	ErrDeleted = index.ErrDeleted
	// ErrNoLexicalIndex is returned by SearchTextFiltered without a keyword index.
	ErrNoLexicalIndex = errors.New("vecsearch: no lexical index configured")
)
