// Package app wires configuration into searchers, embedders and snapshot
// stores for the command line and the HTTP server.
package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/hupe1980/vecsearch"
	"github.com/hupe1980/vecsearch/codec"
	"github.com/hupe1980/vecsearch/embed"
	"github.com/hupe1980/vecsearch/internal/config"
	"github.com/hupe1980/vecsearch/persistence"
)

// App holds the process-wide collaborators shared by every collection.
type App struct {
	Config   *config.Config
	Logger   *vecsearch.Logger
	Embedder embed.Embedder
}

// New builds the logger and the embedder described by cfg. Log output goes
// to w.
func New(cfg *config.Config, w io.Writer) (*App, error) {
	logger, err := NewLogger(cfg.Log, w)
	if err != nil {
		return nil, err
	}

	e, err := OpenEmbedder(cfg.Embedding)
	if err != nil {
		return nil, err
	}

	return &App{Config: cfg, Logger: logger, Embedder: e}, nil
}

// Close releases the embedder.
func (a *App) Close() error {
	return a.Embedder.Close()
}

// NewLogger returns a text or JSON logger writing to w at cfg.Level.
func NewLogger(cfg config.LogConfig, w io.Writer) (*vecsearch.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		return vecsearch.NewLogger(slog.NewTextHandler(w, opts)), nil
	case "json":
		return vecsearch.NewLogger(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}
}

// BlobOptions converts the storage settings into persistence options.
func BlobOptions(cfg config.StorageConfig) ([]persistence.BlobOption, error) {
	c, comp, err := storage(cfg)
	if err != nil {
		return nil, err
	}
	return []persistence.BlobOption{persistence.WithCodec(c), persistence.WithCompression(comp)}, nil
}

func storage(cfg config.StorageConfig) (codec.Codec, persistence.Compression, error) {
	c, ok := codec.ByName(cfg.Codec)
	if !ok {
		return nil, 0, fmt.Errorf("unknown codec %q", cfg.Codec)
	}

	comp, err := persistence.ParseCompression(cfg.Compression)
	if err != nil {
		return nil, 0, err
	}
	return c, comp, nil
}

// OpenEmbedder creates the configured embedder behind an LRU cache.
func OpenEmbedder(cfg config.EmbeddingConfig) (embed.Embedder, error) {
	var inner embed.Embedder

	switch cfg.Provider {
	case "hash":
		inner = embed.NewHashEmbedder(cfg.Dimensions)
	case "onnx":
		e, err := embed.NewONNXEmbedder(embed.ONNXConfig{
			ModelPath:         cfg.ModelPath,
			SharedLibraryPath: cfg.SharedLibraryPath,
			Dimensions:        cfg.Dimensions,
			MaxTokens:         cfg.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
		inner = e
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	if cfg.CacheSize < 0 {
		return inner, nil
	}

	cached, err := embed.NewCachedEmbedder(inner, cfg.CacheSize)
	if err != nil {
		return nil, errors.Join(err, inner.Close())
	}
	return cached, nil
}

// shared lends an embedder to a Searcher without handing over ownership.
type shared struct {
	embed.Embedder
}

func (shared) Close() error { return nil }
