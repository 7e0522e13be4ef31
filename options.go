package vecsearch

import (
	"log/slog"

	"github.com/hupe1980/vecsearch/codec"
	"github.com/hupe1980/vecsearch/index"
	"github.com/hupe1980/vecsearch/lexical"
	"github.com/hupe1980/vecsearch/persistence"
)

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	indexConfig      index.Config
	termHasher       index.TermHasher
	lexical          lexical.Index
	blobOpts         []persistence.BlobOption
}

// Option configures a Searcher.
type Option func(*options)

// WithMetricsCollector configures a metrics collector. Nil disables metrics.
//
//	metrics := &vecsearch.BasicMetricsCollector{}
//	s := vecsearch.New(q, e, vecsearch.WithMetricsCollector(metrics))
//	fmt.Println(metrics.GetStats().SearchCount)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging. Nil disables logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel is shorthand for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithIndexConfig sets the inverted index configuration.
func WithIndexConfig(cfg index.Config) Option {
	return func(o *options) {
		o.indexConfig = cfg
	}
}

// WithTermHasher replaces the default term hasher of the index.
func WithTermHasher(h index.TermHasher) Option {
	return func(o *options) {
		o.termHasher = h
	}
}

// WithLexicalIndex enables keyword-filtered search. The Searcher feeds it
// every added chunk and rebuilds it on Load.
func WithLexicalIndex(x lexical.Index) Option {
	return func(o *options) {
		o.lexical = x
	}
}

// WithCodec sets the codec of stored artifacts. Nil means codec.Default.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.blobOpts = append(o.blobOpts, persistence.WithCodec(c))
	}
}

// WithCompression sets the compression of stored artifacts.
func WithCompression(c persistence.Compression) Option {
	return func(o *options) {
		o.blobOpts = append(o.blobOpts, persistence.WithCompression(c))
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		indexConfig:      index.DefaultConfig(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
