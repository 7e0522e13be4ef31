package index

import (
	"log/slog"

	"github.com/hupe1980/vecsearch/persistence"
)

// Option configures an Index.
type Option func(*Index)

// WithConfig sets the configuration. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(x *Index) {
		workers := x.cfg.Workers
		x.cfg = cfg.withDefaults()
		if cfg.Workers == 0 {
			x.cfg.Workers = workers
		}
	}
}

// WithTermHasher replaces the default XXHasher.
func WithTermHasher(h TermHasher) Option {
	return func(x *Index) {
		if h != nil {
			x.hasher = h
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(x *Index) {
		if l != nil {
			x.logger = l
		}
	}
}

// WithWorkers limits rerank and batch-encode parallelism.
func WithWorkers(n int) Option {
	return func(x *Index) {
		x.cfg.Workers = n
	}
}

// WithBlobOptions sets codec and compression of the key and vector files.
func WithBlobOptions(opts ...persistence.BlobOption) Option {
	return func(x *Index) {
		x.blobOpts = append(x.blobOpts, opts...)
	}
}
