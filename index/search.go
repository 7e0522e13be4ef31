package index

import (
	"cmp"
	"math"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/vecsearch/distance"
	"github.com/hupe1980/vecsearch/internal/parallel"
	"github.com/hupe1980/vecsearch/quantization"
)

// Search returns up to topn documents nearest to v, ascending by distance.
// Candidates come from the clusterTopn nearest centroids of every segment.
// An empty index yields an empty result.
func (x *Index) Search(v []float32, clusterTopn, topn int) ([]Result, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	recall, err := x.recall(v, clusterTopn)
	if err != nil {
		return nil, err
	}
	return x.rerank(v, recall, topn)
}

// SearchBitmap returns the recall set of v: for every segment the union of
// the postings of its clusterTopn nearest centroids, intersected across
// segments. Deleted ids are excluded. The result is owned by the caller.
func (x *Index) SearchBitmap(v []float32, clusterTopn int) (*roaring.Bitmap, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	return x.recall(v, clusterTopn)
}

// Rerank ranks candidates by exact distance to v and returns up to topn.
// At most Config.MaxRecall candidates are considered.
func (x *Index) Rerank(v []float32, candidates *roaring.Bitmap, topn int) ([]Result, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if candidates == nil {
		return []Result{}, nil
	}
	live := roaring.AndNot(candidates, x.tombstones)
	return x.rerank(v, live, topn)
}

func (x *Index) recall(v []float32, clusterTopn int) (*roaring.Bitmap, error) {
	if len(x.postings) == 0 {
		return roaring.New(), nil
	}

	neighbors, err := x.q.Search(v, clusterTopn)
	if err != nil {
		return nil, err
	}

	var out *roaring.Bitmap
	for s, ns := range neighbors {
		segment := roaring.New()
		for _, n := range ns {
			if p, ok := x.postings[x.hasher.Term(s, n.ID)]; ok {
				segment.Or(p)
			}
		}
		if out == nil {
			out = segment
		} else {
			out.And(segment)
		}
		if out.IsEmpty() {
			break
		}
	}
	if out == nil {
		return roaring.New(), nil
	}

	out.AndNot(x.tombstones)
	return out, nil
}

func (x *Index) rerank(v []float32, candidates *roaring.Bitmap, topn int) ([]Result, error) {
	if topn <= 0 || candidates.IsEmpty() {
		return []Result{}, nil
	}
	if len(v) != x.q.Dimension() {
		return nil, &quantization.ErrDimensionMismatch{Expected: x.q.Dimension(), Actual: len(v)}
	}

	ids := make([]uint32, 0, min(candidates.GetCardinality(), uint64(x.cfg.MaxRecall)))
	it := candidates.Iterator()
	for it.HasNext() && len(ids) < x.cfg.MaxRecall {
		ids = append(ids, it.Next())
	}
	if uint64(len(ids)) < candidates.GetCardinality() {
		x.logger.Debug("recall set capped", "size", candidates.GetCardinality(), "cap", x.cfg.MaxRecall)
	}

	results, err := parallel.Map(x.cfg.Workers, len(ids), func(i int) (Result, error) {
		best := float32(math.Inf(1))
		for _, stored := range x.vectors[ids[i]] {
			best = min(best, distance.Euclidean(v, stored))
		}
		return Result{ID: ids[i], Distance: best}, nil
	})
	if err != nil {
		return nil, err
	}

	// Postings may name ids without vectors after a partial load.
	results = slices.DeleteFunc(results, func(r Result) bool {
		return math.IsInf(float64(r.Distance), 1)
	})
	slices.SortStableFunc(results, func(a, b Result) int {
		return cmp.Compare(a.Distance, b.Distance)
	})

	if len(results) > topn {
		results = results[:topn]
	}
	return results, nil
}
