package quantization

import (
	"cmp"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"slices"

	"github.com/hupe1980/vecsearch/distance"
	"github.com/hupe1980/vecsearch/internal/kmeans"
	"github.com/hupe1980/vecsearch/persistence"
	"golang.org/x/sync/errgroup"
)

// Config holds the quantizer parameters.
type Config struct {
	// Segments is the number of sub-vectors. Must divide Dimension.
	// Default: 16
	Segments int

	// ClusterCount is the number of centroids trained per segment.
	// Fewer are produced when training data is scarce.
	// Default: 16
	ClusterCount int

	// MaxIterations bounds k-means refinement per segment.
	// Default: 100
	MaxIterations int

	// Dimension is the length of every vector.
	// Default: 768
	Dimension int

	// MaxTrainVectors caps the training set; larger inputs are shuffled
	// and truncated.
	// Default: 500000
	MaxTrainVectors int

	// Seed drives subsampling and centroid seeding.
	Seed int64

	// Workers bounds concurrent segment trainings. 0 means GOMAXPROCS.
	Workers int
}

// DefaultConfig returns the default quantizer configuration.
func DefaultConfig() Config {
	return Config{
		Segments:        16,
		ClusterCount:    16,
		MaxIterations:   100,
		Dimension:       768,
		MaxTrainVectors: 500_000,
		Seed:            1,
	}
}

// Code is the quantized form of a vector: one centroid id per segment.
type Code []int

// Neighbor is a centroid id with its distance to a query sub-vector.
type Neighbor struct {
	ID       int
	Distance float32
}

// Quantizer is a product quantizer. Once trained it is immutable and safe
// for concurrent use.
type Quantizer struct {
	cfg       Config
	subDim    int
	centroids [][]kmeans.Centroid
	vectors   [][][]float32 // centroid vectors by segment, same order as centroids
	logger    *slog.Logger
	blobOpts  []persistence.BlobOption
}

// Option configures a Quantizer.
type Option func(*Quantizer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(q *Quantizer) {
		if l != nil {
			q.logger = l
		}
	}
}

// WithBlobOptions sets codec and compression for Store.
func WithBlobOptions(opts ...persistence.BlobOption) Option {
	return func(q *Quantizer) {
		q.blobOpts = append(q.blobOpts, opts...)
	}
}

// New creates an untrained quantizer. Zero-valued fields of cfg fall back to
// DefaultConfig. A dimension that Segments does not divide is rejected.
func New(cfg Config, opts ...Option) (*Quantizer, error) {
	def := DefaultConfig()
	if cfg.Segments <= 0 {
		cfg.Segments = def.Segments
	}
	if cfg.ClusterCount <= 0 {
		cfg.ClusterCount = def.ClusterCount
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = def.Dimension
	}
	if cfg.MaxTrainVectors <= 0 {
		cfg.MaxTrainVectors = def.MaxTrainVectors
	}
	if cfg.Dimension%cfg.Segments != 0 {
		return nil, &ErrInvalidConfig{
			Segments:  cfg.Segments,
			Dimension: cfg.Dimension,
			Reason:    "segments must divide dimension",
		}
	}

	q := &Quantizer{
		cfg:    cfg,
		subDim: cfg.Dimension / cfg.Segments,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// MustNew is like New but panics on an invalid configuration.
func MustNew(cfg Config, opts ...Option) *Quantizer {
	q, err := New(cfg, opts...)
	if err != nil {
		panic(err)
	}
	return q
}

// Config returns the quantizer configuration.
func (q *Quantizer) Config() Config { return q.cfg }

// Segments returns the number of segments.
func (q *Quantizer) Segments() int { return q.cfg.Segments }

// Dimension returns the vector dimension.
func (q *Quantizer) Dimension() int { return q.cfg.Dimension }

// Trained reports whether centroids are available.
func (q *Quantizer) Trained() bool { return q.centroids != nil }

// Centroids returns a copy of the centroid list of segment s.
func (q *Quantizer) Centroids(s int) []kmeans.Centroid {
	if !q.Trained() || s < 0 || s >= len(q.centroids) {
		return nil
	}
	out := make([]kmeans.Centroid, len(q.centroids[s]))
	for i, c := range q.centroids[s] {
		out[i] = kmeans.Centroid{ID: c.ID, Vector: slices.Clone(c.Vector)}
	}
	return out
}

// Train learns one codebook per segment. Segments train concurrently.
// A quantizer trains once; later calls return ErrAlreadyTrained.
func (q *Quantizer) Train(vectors [][]float32) error {
	if q.Trained() {
		return ErrAlreadyTrained
	}
	if len(vectors) == 0 {
		return ErrNoTrainingData
	}
	for _, v := range vectors {
		if err := q.checkDim(v); err != nil {
			return err
		}
	}

	sample := q.sample(vectors)
	q.logger.Info("training quantizer",
		"vectors", len(vectors),
		"sample", len(sample),
		"segments", q.cfg.Segments,
		"cluster_count", q.cfg.ClusterCount,
	)

	centroids := make([][]kmeans.Centroid, q.cfg.Segments)
	var g errgroup.Group
	if q.cfg.Workers > 0 {
		g.SetLimit(q.cfg.Workers)
	}
	for s := 0; s < q.cfg.Segments; s++ {
		g.Go(func() error {
			sub := make([][]float32, len(sample))
			for i, v := range sample {
				sub[i] = q.segment(v, s)
			}
			tr := kmeans.New(kmeans.Config{
				K:             q.cfg.ClusterCount,
				MaxIterations: q.cfg.MaxIterations,
				Seed:          q.cfg.Seed + int64(s),
			}, kmeans.WithLogger(q.logger.With("segment", s)))

			res, err := tr.Train(sub)
			if err != nil {
				return fmt.Errorf("quantization: segment %d: %w", s, err)
			}
			q.logger.Debug("segment trained", "segment", s, "iterations", res.Iterations, "centroids", len(res.Centroids))
			centroids[s] = res.Centroids
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	q.setCentroids(centroids)
	return nil
}

// sample shuffles and truncates the training set when it exceeds
// MaxTrainVectors. The caller's slice is left untouched.
func (q *Quantizer) sample(vectors [][]float32) [][]float32 {
	if len(vectors) <= q.cfg.MaxTrainVectors {
		return vectors
	}
	out := slices.Clone(vectors)
	rng := rand.New(rand.NewPCG(uint64(q.cfg.Seed), 0))
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out[:q.cfg.MaxTrainVectors]
}

func (q *Quantizer) setCentroids(centroids [][]kmeans.Centroid) {
	vectors := make([][][]float32, len(centroids))
	for s, cs := range centroids {
		vectors[s] = make([][]float32, len(cs))
		for i, c := range cs {
			vectors[s][i] = c.Vector
		}
	}
	q.centroids = centroids
	q.vectors = vectors
}

// Encode returns the id of the nearest centroid of every segment.
func (q *Quantizer) Encode(v []float32) (Code, error) {
	if !q.Trained() {
		return nil, ErrNotTrained
	}
	if err := q.checkDim(v); err != nil {
		return nil, err
	}

	code := make(Code, q.cfg.Segments)
	for s := range code {
		idx, _ := kmeans.Nearest(q.segment(v, s), q.vectors[s])
		code[s] = q.centroids[s][idx].ID
	}
	return code, nil
}

// Search returns, for every segment, the topn nearest centroids sorted by
// ascending Euclidean distance. Asking for more centroids than a segment
// holds is an error.
func (q *Quantizer) Search(v []float32, topn int) ([][]Neighbor, error) {
	if !q.Trained() {
		return nil, ErrNotTrained
	}
	if err := q.checkDim(v); err != nil {
		return nil, err
	}
	topn = max(topn, 0)

	out := make([][]Neighbor, q.cfg.Segments)
	for s := range out {
		cs := q.centroids[s]
		if topn > len(cs) {
			return nil, &ErrTopNExceedsCentroids{Segment: s, TopN: topn, Centroids: len(cs)}
		}

		sub := q.segment(v, s)
		all := make([]Neighbor, len(cs))
		for i, c := range cs {
			all[i] = Neighbor{ID: c.ID, Distance: distance.Euclidean(sub, c.Vector)}
		}
		slices.SortStableFunc(all, func(a, b Neighbor) int {
			return cmp.Compare(a.Distance, b.Distance)
		})
		out[s] = all[:topn]
	}
	return out, nil
}

// Decode reconstructs the approximate vector of code by concatenating the
// referenced centroids.
func (q *Quantizer) Decode(code Code) ([]float32, error) {
	if !q.Trained() {
		return nil, ErrNotTrained
	}
	if len(code) != q.cfg.Segments {
		return nil, &ErrDimensionMismatch{Expected: q.cfg.Segments, Actual: len(code)}
	}

	out := make([]float32, 0, q.cfg.Dimension)
	for s, id := range code {
		c, ok := q.centroid(s, id)
		if !ok {
			return nil, &ErrInvalidCode{Segment: s, ID: id}
		}
		out = append(out, c...)
	}
	return out, nil
}

// QuantizationError returns the Euclidean distance between v and its
// reconstruction.
func (q *Quantizer) QuantizationError(v []float32) (float32, error) {
	code, err := q.Encode(v)
	if err != nil {
		return 0, err
	}
	approx, err := q.Decode(code)
	if err != nil {
		return 0, err
	}
	return distance.Euclidean(v, approx), nil
}

func (q *Quantizer) centroid(s, id int) ([]float32, bool) {
	cs := q.centroids[s]
	// Ids are assigned sequentially, so the index normally is the id.
	if id >= 0 && id < len(cs) && cs[id].ID == id {
		return cs[id].Vector, true
	}
	for _, c := range cs {
		if c.ID == id {
			return c.Vector, true
		}
	}
	return nil, false
}

func (q *Quantizer) segment(v []float32, s int) []float32 {
	return v[s*q.subDim : (s+1)*q.subDim : (s+1)*q.subDim]
}

func (q *Quantizer) checkDim(v []float32) error {
	if len(v) != q.cfg.Dimension {
		return &ErrDimensionMismatch{Expected: q.cfg.Dimension, Actual: len(v)}
	}
	return nil
}

// MeanError is the average QuantizationError over vectors.
func (q *Quantizer) MeanError(vectors [][]float32) (float64, error) {
	if len(vectors) == 0 {
		return 0, nil
	}
	var sum float64
	for _, v := range vectors {
		e, err := q.QuantizationError(v)
		if err != nil {
			return 0, err
		}
		sum += float64(e)
	}
	return sum / float64(len(vectors)), nil
}

// Equal reports whether q and other encode identically: same segment
// layout and the same centroids. Training knobs are not compared.
func (q *Quantizer) Equal(other *Quantizer) bool {
	if q == other {
		return true
	}
	if q == nil || other == nil {
		return false
	}
	if q.cfg.Segments != other.cfg.Segments || q.cfg.Dimension != other.cfg.Dimension {
		return false
	}
	return slices.EqualFunc(q.centroids, other.centroids, func(a, b []kmeans.Centroid) bool {
		return slices.EqualFunc(a, b, func(x, y kmeans.Centroid) bool {
			return x.ID == y.ID && slices.Equal(x.Vector, y.Vector)
		})
	})
}
