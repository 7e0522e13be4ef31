// Package embed turns text into vectors.
//
// Embedders are external collaborators of the search coordinator: they may
// fail for an item, and the caller decides whether to skip it.
package embed

import (
	"context"
	"errors"
)

// ErrEmptyText is returned for text with nothing to embed.
var ErrEmptyText = errors.New("embed: empty text")

// Embedder produces fixed-dimension vectors for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// embedEach embeds texts one at a time, stopping at the first error or when
// ctx is done.
func embedEach(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
