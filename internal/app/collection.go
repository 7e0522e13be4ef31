package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/vecsearch"
	"github.com/hupe1980/vecsearch/internal/config"
	"github.com/hupe1980/vecsearch/lexical"
	"github.com/hupe1980/vecsearch/lexical/bleve"
	"github.com/hupe1980/vecsearch/lexical/memory"
	"github.com/hupe1980/vecsearch/quantization"
)

// OpenLexical opens the keyword index of col, or returns nil when keyword
// filtering is not configured.
func OpenLexical(col config.CollectionConfig) (lexical.Index, error) {
	switch col.LexicalPath {
	case "":
		return nil, nil
	case "memory":
		return memory.New(), nil
	default:
		x, err := bleve.New(col.LexicalPath)
		if err != nil {
			return nil, err
		}
		return x, nil
	}
}

// searcherOptions returns the Searcher options every collection shares.
func (a *App) searcherOptions(col config.CollectionConfig, opts []vecsearch.Option) ([]vecsearch.Option, error) {
	c, comp, err := storage(a.Config.Storage)
	if err != nil {
		return nil, err
	}

	out := []vecsearch.Option{
		vecsearch.WithLogger(&vecsearch.Logger{Logger: a.Logger.With("collection", col.Name)}),
		vecsearch.WithIndexConfig(a.Config.IndexConfig()),
		vecsearch.WithCodec(c),
		vecsearch.WithCompression(comp),
	}
	return append(out, opts...), nil
}

// NewSearcher creates an empty Searcher for col over q. The Searcher borrows
// the App's embedder.
func (a *App) NewSearcher(col config.CollectionConfig, q *quantization.Quantizer, opts ...vecsearch.Option) (*vecsearch.Searcher, error) {
	sopts, err := a.searcherOptions(col, opts)
	if err != nil {
		return nil, err
	}

	x, err := OpenLexical(col)
	if err != nil {
		return nil, err
	}
	if x != nil {
		sopts = append(sopts, vecsearch.WithLexicalIndex(x))
	}

	return vecsearch.New(q, shared{a.Embedder}, sopts...), nil
}

// OpenCollection loads the quantizer and the stored index of col.
func (a *App) OpenCollection(ctx context.Context, col config.CollectionConfig, opts ...vecsearch.Option) (*vecsearch.Searcher, error) {
	blobOpts, err := BlobOptions(a.Config.Storage)
	if err != nil {
		return nil, err
	}

	q, err := quantization.Load(col.ModelPath(),
		quantization.WithLogger(a.Logger.Slog()),
		quantization.WithBlobOptions(blobOpts...),
	)
	if err != nil {
		return nil, fmt.Errorf("collection %s: %w", col.Name, err)
	}

	s, err := a.NewSearcher(col, q, opts...)
	if err != nil {
		return nil, err
	}

	if err := s.Load(col.IndexPath()); err != nil {
		return nil, errors.Join(fmt.Errorf("collection %s: %w", col.Name, err), s.Close())
	}

	a.Logger.InfoContext(ctx, "collection opened",
		"collection", col.Name,
		"documents", s.Len(),
	)
	return s, nil
}
