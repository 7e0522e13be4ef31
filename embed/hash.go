package embed

import (
	"context"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/hupe1980/vecsearch/distance"
)

// HashEmbedder is a deterministic feature-hashing embedder. Every lowercased
// word adds ±1 to one hashed component and the result is L2-normalized, so
// texts sharing words land close together. It needs no model and is used for
// tests and offline builds.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder returns a HashEmbedder producing vectors of the given
// dimension (768 if dimensions <= 0).
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 768
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Embed implements Embedder.
func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, e.dimensions)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := xxhash.Sum64String(word)
		sign := float32(1)
		if h>>63 == 1 {
			sign = -1
		}
		v[h%uint64(e.dimensions)] += sign
	}
	if !distance.NormalizeL2InPlace(v) {
		return nil, ErrEmptyText
	}
	return v, nil
}

// EmbedBatch implements Embedder.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, e, texts)
}

// Dimensions implements Embedder.
func (e *HashEmbedder) Dimensions() int { return e.dimensions }

// Close implements Embedder.
func (e *HashEmbedder) Close() error { return nil }
