package testutil

import (
	"cmp"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/hupe1980/vecsearch/distance"
)

// SearchResult is a document id with its distance to a query.
type SearchResult struct {
	ID       uint32
	Distance float32
}

// RNG wraps a seeded random source. It is safe for concurrent use.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG with the given seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewPCG(uint64(seed), 0)),
		seed: seed,
	}
}

// Reset rewinds the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand = rand.New(rand.NewPCG(uint64(r.seed), 0))
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.IntN(n)
}

// UniformVectors generates vectors with components in [0, 1).
func (r *RNG) UniformVectors(num, dim int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dim)
	vectors := make([][]float32, num)
	for i := range num {
		vec := data[i*dim : (i+1)*dim : (i+1)*dim]
		for j := range vec {
			vec[j] = r.rand.Float32()
		}
		vectors[i] = vec
	}
	return vectors
}

// GaussianVectors generates vectors with standard normal components.
func (r *RNG) GaussianVectors(num, dim int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	vectors := make([][]float32, num)
	for i := range vectors {
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = float32(r.rand.NormFloat64())
		}
		vectors[i] = vec
	}
	return vectors
}

// UnitVectors generates L2-normalized vectors, as produced by sentence
// embedding models.
func (r *RNG) UnitVectors(num, dim int) [][]float32 {
	vectors := r.GaussianVectors(num, dim)
	for _, v := range vectors {
		if !distance.NormalizeL2InPlace(v) {
			v[0] = 1
		}
	}
	return vectors
}

// ClusteredVectors generates num vectors around `clusters` random unit
// centers with Gaussian noise of the given spread. labels[i] is the
// cluster of vectors[i]; vectors are assigned round-robin.
func (r *RNG) ClusteredVectors(num, dim, clusters int, spread float32) (vectors [][]float32, labels []int) {
	centers := r.UnitVectors(clusters, dim)

	r.mu.Lock()
	defer r.mu.Unlock()

	vectors = make([][]float32, num)
	labels = make([]int, num)
	for i := range num {
		c := i % clusters
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = centers[c][j] + float32(r.rand.NormFloat64())*spread
		}
		vectors[i] = vec
		labels[i] = c
	}
	return vectors, labels
}

// BruteForceSearch ranks documents by the minimum Euclidean distance between
// query and any of their vectors and returns the k closest. Ties are broken
// by id.
func BruteForceSearch(docs map[uint32][][]float32, query []float32, k int) []SearchResult {
	results := make([]SearchResult, 0, len(docs))
	for id, vecs := range docs {
		if len(vecs) == 0 {
			continue
		}
		best := distance.Euclidean(query, vecs[0])
		for _, v := range vecs[1:] {
			best = min(best, distance.Euclidean(query, v))
		}
		results = append(results, SearchResult{ID: id, Distance: best})
	}

	slices.SortFunc(results, func(a, b SearchResult) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}

// ComputeRecall returns the fraction of groundTruth ids found in approximate.
func ComputeRecall(groundTruth []SearchResult, approximate []uint32) float64 {
	if len(groundTruth) == 0 {
		return 1
	}
	found := make(map[uint32]struct{}, len(approximate))
	for _, id := range approximate {
		found[id] = struct{}{}
	}
	hits := 0
	for _, r := range groundTruth {
		if _, ok := found[r.ID]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(groundTruth))
}
