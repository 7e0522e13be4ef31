package kmeans

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/hupe1980/vecsearch/distance"
	"github.com/hupe1980/vecsearch/internal/parallel"
)

// MinClusters is the smallest cluster count the trainer produces when at
// least that many vectors are available.
const MinClusters = 2

// ErrNoVectors is returned when Train is called without input.
var ErrNoVectors = errors.New("kmeans: no training vectors")

// ErrDimensionMismatch indicates a training vector whose length differs from
// the first vector's.
type ErrDimensionMismatch struct {
	Index    int
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("kmeans: vector %d has dimension %d, expected %d", e.Index, e.Actual, e.Expected)
}

// Config controls a training run.
type Config struct {
	// K is the requested cluster count. It is raised to MinClusters and
	// lowered to the number of training vectors.
	K int

	// MaxIterations bounds the number of refinement rounds.
	// Default: 100
	MaxIterations int

	// MinIterations is the floor applied to MaxIterations.
	// Default: 5
	MinIterations int

	// Epsilon is the SSE change at or below which training has converged.
	// Default: 1e-6
	Epsilon float64

	// Seed drives the choice of the first centroid.
	Seed int64

	// Workers bounds the parallel assignment step. 0 means GOMAXPROCS.
	Workers int
}

// DefaultConfig returns the default training configuration.
func DefaultConfig() Config {
	return Config{
		K:             16,
		MaxIterations: 100,
		MinIterations: 5,
		Epsilon:       1e-6,
		Seed:          1,
	}
}

// Centroid is a cluster center tagged with an id unique within its set.
type Centroid struct {
	ID     int       `msgpack:"id" json:"id"`
	Vector []float32 `msgpack:"vector" json:"vector"`
}

// Result is the outcome of a training run.
type Result struct {
	Centroids  []Centroid
	Iterations int
	// SSE holds the sum of squared errors observed at every iteration.
	SSE []float64
}

// Trainer trains k-means centroids.
type Trainer struct {
	cfg    Config
	logger *slog.Logger
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithLogger sets the logger used for iteration progress.
func WithLogger(l *slog.Logger) Option {
	return func(t *Trainer) {
		if l != nil {
			t.logger = l
		}
	}
}

// New creates a Trainer. Zero-valued fields of cfg fall back to DefaultConfig.
func New(cfg Config, opts ...Option) *Trainer {
	def := DefaultConfig()
	if cfg.K <= 0 {
		cfg.K = def.K
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	if cfg.MinIterations <= 0 {
		cfg.MinIterations = def.MinIterations
	}
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = def.Epsilon
	}

	t := &Trainer{
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Train clusters vectors and returns centroids with ids 0..k-1.
// The input slice is not modified.
func (t *Trainer) Train(vectors [][]float32) (*Result, error) {
	n := len(vectors)
	if n == 0 {
		return nil, ErrNoVectors
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return nil, &ErrDimensionMismatch{Index: i, Expected: dim, Actual: len(v)}
		}
	}

	k := min(max(t.cfg.K, MinClusters), n)
	maxIter := max(t.cfg.MaxIterations, t.cfg.MinIterations)
	rng := rand.New(rand.NewPCG(uint64(t.cfg.Seed), 0))

	centers := t.seed(vectors, k, rng)
	assign := make([]int, n)

	var sse []float64
	iter := 1
	for {
		cur := t.assign(vectors, centers, assign)
		sse = append(sse, cur)
		t.logger.Debug("kmeans iteration", "iteration", iter, "k", k, "sse", cur)

		if iter > maxIter {
			break
		}
		if len(sse) > 1 && math.Abs(sse[len(sse)-2]-cur) <= t.cfg.Epsilon {
			break
		}
		update(vectors, centers, assign)
		iter++
	}

	out := make([]Centroid, len(centers))
	for i, c := range centers {
		out[i] = Centroid{ID: i, Vector: c}
	}
	return &Result{Centroids: out, Iterations: iter, SSE: sse}, nil
}

// seed chooses k initial centers. The first is uniformly random; each
// following one maximizes seedScore over the vectors not chosen yet.
func (t *Trainer) seed(vectors [][]float32, k int, rng *rand.Rand) [][]float32 {
	n := len(vectors)
	chosen := make([]bool, n)

	first := rng.IntN(n)
	chosen[first] = true
	centers := make([][]float32, 0, k)
	centers = append(centers, slices.Clone(vectors[first]))

	type pick struct {
		idx   int
		score float64
	}

	for len(centers) < k {
		picks := make([]pick, parallel.Chunks(t.cfg.Workers, n))
		parallel.For(t.cfg.Workers, n, func(c, lo, hi int) {
			best := pick{idx: -1, score: math.Inf(-1)}
			dists := make([]float64, len(centers))
			for i := lo; i < hi; i++ {
				if chosen[i] {
					continue
				}
				for j, center := range centers {
					dists[j] = float64(distance.Euclidean(vectors[i], center))
				}
				s, ok := seedScore(dists)
				if ok && s > best.score {
					best = pick{idx: i, score: s}
				}
			}
			picks[c] = best
		})

		best := pick{idx: -1, score: math.Inf(-1)}
		for _, p := range picks {
			if p.idx >= 0 && p.score > best.score {
				best = p
			}
		}
		if best.idx < 0 {
			// Every remaining vector coincides with a center.
			best.idx = slices.Index(chosen, false)
		}

		chosen[best.idx] = true
		centers = append(centers, slices.Clone(vectors[best.idx]))
	}
	return centers
}

// seedScore rates a candidate by its distances to the current centers.
// With one center the score is that distance. Otherwise it is
// ((1 + Σ log d) - log Σ d) scaled by unevenWeight. Candidates sitting on a
// center are rejected.
func seedScore(dists []float64) (float64, bool) {
	var sum, logSum float64
	for _, d := range dists {
		if d <= 0 {
			return 0, false
		}
		sum += d
		logSum += math.Log(d)
	}
	if len(dists) == 1 {
		return sum, true
	}
	return unevenWeight(dists) * ((1 + logSum) - math.Log(sum)), true
}

// unevenWeight returns the smallest ratio between neighbouring distances
// in ascending order, capped at 1.
func unevenWeight(dists []float64) float64 {
	if len(dists) < 2 {
		return 1
	}
	sorted := slices.Clone(dists)
	slices.Sort(sorted)

	w := 1.0
	for i := 1; i < len(sorted); i++ {
		if r := sorted[i-1] / sorted[i]; r < w {
			w = r
		}
	}
	return w
}

// assign stores the nearest center of every vector in assign and returns
// the resulting sum of squared errors.
func (t *Trainer) assign(vectors, centers [][]float32, assign []int) float64 {
	partial := make([]float64, parallel.Chunks(t.cfg.Workers, len(vectors)))
	parallel.For(t.cfg.Workers, len(vectors), func(c, lo, hi int) {
		var sse float64
		for i := lo; i < hi; i++ {
			id, d := Nearest(vectors[i], centers)
			assign[i] = id
			sse += float64(d)
		}
		partial[c] = sse
	})

	var sse float64
	for _, s := range partial {
		sse += s
	}
	return sse
}

// update moves every center to the mean of its members. Centers without
// members keep their position.
func update(vectors, centers [][]float32, assign []int) {
	members := make([][][]float32, len(centers))
	for i, c := range assign {
		members[c] = append(members[c], vectors[i])
	}
	for c := range centers {
		distance.Mean(centers[c], members[c])
	}
}

// Nearest returns the index of the center closest to v and the squared
// distance to it. Ties resolve to the lower index. centers must not be
// empty.
func Nearest(v []float32, centers [][]float32) (int, float32) {
	buf := make([]float32, len(v))
	best, bestDist := 0, distance.SquaredL2Into(buf, v, centers[0])
	for j := 1; j < len(centers); j++ {
		if d := distance.SquaredL2Into(buf, v, centers[j]); d < bestDist {
			best, bestDist = j, d
		}
	}
	return best, bestDist
}
