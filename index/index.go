package index

import (
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/vecsearch/internal/parallel"
	"github.com/hupe1980/vecsearch/persistence"
	"github.com/hupe1980/vecsearch/quantization"
)

// Result is a document id with its exact distance to the query.
type Result struct {
	ID       uint32  `json:"id"`
	Distance float32 `json:"distance"`
}

// Index is an inverted index over quantization codes.
//
// Mutating methods (AddVector, AddVectors, Delete, Merge, Store, Load) are
// meant for a single writer. Searches may run concurrently with each other.
type Index struct {
	q        *quantization.Quantizer
	cfg      Config
	hasher   TermHasher
	logger   *slog.Logger
	blobOpts []persistence.BlobOption

	mu         sync.RWMutex
	postings   map[uint64]*roaring.Bitmap
	vectors    map[uint32][][]float32
	tombstones *roaring.Bitmap
}

// New creates an empty index over the terms of q.
func New(q *quantization.Quantizer, opts ...Option) *Index {
	x := &Index{
		q:          q,
		cfg:        DefaultConfig(),
		hasher:     XXHasher{},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		postings:   make(map[uint64]*roaring.Bitmap),
		vectors:    make(map[uint32][][]float32),
		tombstones: roaring.New(),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Quantizer returns the quantizer the index encodes with.
func (x *Index) Quantizer() *quantization.Quantizer { return x.q }

// Config returns the effective configuration.
func (x *Index) Config() Config { return x.cfg }

// AddVector encodes v and records id under each of its terms. An id may be
// added several times; every vector is kept for reranking.
func (x *Index) AddVector(v []float32, id uint32) error {
	code, err := x.q.Encode(v)
	if err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.tombstones.Contains(id) {
		return ErrDeleted
	}
	x.add(code, slices.Clone(v), id)
	return nil
}

// AddVectors adds vs[i] under ids[i]. All vectors are encoded before any is
// added, so an invalid vector leaves the index unchanged.
func (x *Index) AddVectors(vs [][]float32, ids []uint32) error {
	if len(vs) != len(ids) {
		return &ErrLengthMismatch{Vectors: len(vs), IDs: len(ids)}
	}

	codes, err := parallel.Map(x.cfg.Workers, len(vs), func(i int) (quantization.Code, error) {
		return x.q.Encode(vs[i])
	})
	if err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	for _, id := range ids {
		if x.tombstones.Contains(id) {
			return ErrDeleted
		}
	}
	for i, code := range codes {
		x.add(code, slices.Clone(vs[i]), ids[i])
	}

	x.logger.Debug("vectors added", "count", len(vs), "terms", len(x.postings))
	return nil
}

func (x *Index) add(code quantization.Code, v []float32, id uint32) {
	for s, c := range code {
		key := x.hasher.Term(s, c)
		p, ok := x.postings[key]
		if !ok {
			p = roaring.New()
			x.postings[key] = p
		}
		p.Add(id)
	}
	x.vectors[id] = append(x.vectors[id], v)
}

// Delete marks ids as deleted. They stop appearing in results at once and
// are physically removed by the next Store.
func (x *Index) Delete(ids ...uint32) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.tombstones.AddMany(ids)
}

// Len returns the number of live documents.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()

	n := 0
	for id := range x.vectors {
		if !x.tombstones.Contains(id) {
			n++
		}
	}
	return n
}

// Terms returns the number of terms with a posting.
func (x *Index) Terms() int {
	x.mu.RLock()
	defer x.mu.RUnlock()

	return len(x.postings)
}

// Tombstones returns a copy of the deleted ids not yet removed by Store.
func (x *Index) Tombstones() *roaring.Bitmap {
	x.mu.RLock()
	defer x.mu.RUnlock()

	return x.tombstones.Clone()
}

// Vectors returns the raw vectors stored for id.
func (x *Index) Vectors(id uint32) [][]float32 {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.tombstones.Contains(id) {
		return nil
	}
	return slices.Clone(x.vectors[id])
}
