package index

import (
	"bytes"
	"encoding/binary"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/vecsearch/persistence"
	"github.com/hupe1980/vecsearch/quantization"
	"github.com/hupe1980/vecsearch/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fourClusters returns 8 vectors of dimension 4 in four tight pairs, each
// pair projecting to a distinct point in both 2-d segments. Ids 2p and 2p+1
// form pair p; pair 0 is cluster A.
func fourClusters() [][]float32 {
	centers := [][]float32{
		{0, 0, 0, 0},
		{20, 0, 0, 20},
		{0, 20, 20, 0},
		{20, 20, 20, 20},
	}
	var out [][]float32
	for _, c := range centers {
		out = append(out, c)
		out = append(out, []float32{c[0] + 0.5, c[1], c[2] + 0.5, c[3]})
	}
	return out
}

var queryA = []float32{0.2, 0.1, 0.2, 0.1}

func fourClusterQuantizer(t *testing.T) *quantization.Quantizer {
	t.Helper()
	q, err := quantization.New(quantization.Config{Segments: 2, ClusterCount: 4, Dimension: 4})
	require.NoError(t, err)
	require.NoError(t, q.Train(fourClusters()))
	return q
}

func fourClusterIndex(t *testing.T, opts ...Option) *Index {
	t.Helper()
	x := New(fourClusterQuantizer(t), opts...)
	for i, v := range fourClusters() {
		require.NoError(t, x.AddVector(v, uint32(i)))
	}
	return x
}

type dataset struct {
	q       *quantization.Quantizer
	vectors [][]float32
	ids     []uint32
	queries [][]float32
}

// randomDataset holds two vectors per document id.
func randomDataset(t *testing.T, n int) dataset {
	t.Helper()
	rng := testutil.NewRNG(42)
	vecs := rng.UniformVectors(n, 8)

	q, err := quantization.New(quantization.Config{Segments: 4, ClusterCount: 8, Dimension: 8, MaxIterations: 10})
	require.NoError(t, err)
	require.NoError(t, q.Train(vecs))

	ids := make([]uint32, n)
	for i := range ids {
		ids[i] = uint32(i/2) * 7
	}
	return dataset{q: q, vectors: vecs, ids: ids, queries: rng.UniformVectors(10, 8)}
}

func (d dataset) build(t *testing.T, lo, hi int, opts ...Option) *Index {
	t.Helper()
	x := New(d.q, opts...)
	require.NoError(t, x.AddVectors(d.vectors[lo:hi], d.ids[lo:hi]))
	return x
}

func searchAll(t *testing.T, x *Index, queries [][]float32, clusterTopn, topn int) [][]Result {
	t.Helper()
	out := make([][]Result, len(queries))
	for i, v := range queries {
		res, err := x.Search(v, clusterTopn, topn)
		require.NoError(t, err)
		out[i] = res
	}
	return out
}

func TestScenario_TwoSegmentsFourClusters(t *testing.T) {
	x := fourClusterIndex(t)
	assert.Equal(t, 8, x.Len())
	assert.Equal(t, 8, x.Terms())

	code, err := x.Quantizer().Encode(queryA)
	require.NoError(t, err)
	for s, c := range code {
		p := x.postings[x.hasher.Term(s, c)]
		require.NotNil(t, p, "segment %d", s)
		assert.Equal(t, []uint32{0, 1}, p.ToArray(), "segment %d", s)
	}

	res, err := x.Search(queryA, 1, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, uint32(0), res[0].ID)
	assert.Equal(t, uint32(1), res[1].ID)
	assert.Less(t, res[0].Distance, res[1].Distance)
	assert.InDelta(t, 0.3162, res[0].Distance, 1e-3)
}

func TestSearch_Boundaries(t *testing.T) {
	x := fourClusterIndex(t)

	res, err := x.Search(queryA, 1, 10)
	require.NoError(t, err)
	assert.Len(t, res, 2, "topn above the recall size returns the whole recall set")

	res, err = x.Search(queryA, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, res)

	res, err = x.Search(queryA, 0, 5)
	require.NoError(t, err)
	assert.Empty(t, res)

	res, err = x.Search(queryA, 4, 100)
	require.NoError(t, err)
	assert.Len(t, res, 8)

	_, err = x.Search(queryA, 5, 1)
	var tooMany *quantization.ErrTopNExceedsCentroids
	assert.ErrorAs(t, err, &tooMany)

	_, err = x.Search([]float32{1, 2}, 1, 1)
	var dim *quantization.ErrDimensionMismatch
	assert.ErrorAs(t, err, &dim)
}

func TestSearch_EmptyIndex(t *testing.T) {
	x := New(fourClusterQuantizer(t))
	res, err := x.Search(queryA, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, res)

	// An untrained quantizer behind an empty index is not an error either.
	untrained := New(quantization.MustNew(quantization.Config{Segments: 2, ClusterCount: 4, Dimension: 4}))
	res, err = untrained.Search(queryA, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, res)

	bm, err := untrained.SearchBitmap(queryA, 1)
	require.NoError(t, err)
	assert.True(t, bm.IsEmpty())
}

func TestSearch_AllClustersMatchesBruteForce(t *testing.T) {
	d := randomDataset(t, 400)
	x := d.build(t, 0, len(d.vectors))

	docs := make(map[uint32][][]float32)
	for i, v := range d.vectors {
		docs[d.ids[i]] = append(docs[d.ids[i]], v)
	}

	for _, v := range d.queries {
		res, err := x.Search(v, 8, 10)
		require.NoError(t, err)

		ids := make([]uint32, len(res))
		for i, r := range res {
			ids[i] = r.ID
		}
		assert.Equal(t, 1.0, testutil.ComputeRecall(testutil.BruteForceSearch(docs, v, 10), ids))
	}
}

func TestSearch_MaxRecallKeepsIterationOrder(t *testing.T) {
	x := fourClusterIndex(t, WithConfig(Config{MaxRecall: 1}))

	res, err := x.Search([]float32{0.5, 0, 0.5, 0}, 1, 2)
	require.NoError(t, err)
	require.Len(t, res, 1)
	// Id 1 is closer, but the cap keeps the lowest id.
	assert.Equal(t, uint32(0), res[0].ID)
}

func TestRerank(t *testing.T) {
	x := fourClusterIndex(t)

	res, err := x.Rerank(queryA, roaring.BitmapOf(6, 2, 0), 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, uint32(0), res[0].ID)
	assert.Equal(t, uint32(2), res[1].ID)

	res, err = x.Rerank(queryA, nil, 2)
	require.NoError(t, err)
	assert.Empty(t, res)

	// Unknown ids have no vectors and are dropped.
	res, err = x.Rerank(queryA, roaring.BitmapOf(100), 2)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestAddVector_MultipleVectorsPerID(t *testing.T) {
	x := New(fourClusterQuantizer(t))
	vecs := fourClusters()
	require.NoError(t, x.AddVector(vecs[6], 9))
	require.NoError(t, x.AddVector(vecs[0], 9))

	assert.Equal(t, 1, x.Len())
	assert.Len(t, x.Vectors(9), 2)

	res, err := x.Search(queryA, 1, 5)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, uint32(9), res[0].ID)
	assert.InDelta(t, 0.3162, res[0].Distance, 1e-3, "distance is the minimum over the id's vectors")
}

func TestAddVectors_Errors(t *testing.T) {
	x := New(fourClusterQuantizer(t))

	var lm *ErrLengthMismatch
	require.ErrorAs(t, x.AddVectors(fourClusters(), []uint32{1}), &lm)
	assert.Equal(t, 8, lm.Vectors)
	assert.Equal(t, 1, lm.IDs)

	var dim *quantization.ErrDimensionMismatch
	err := x.AddVectors([][]float32{{0, 0, 0, 0}, {1, 2, 3}}, []uint32{1, 2})
	require.ErrorAs(t, err, &dim)
	assert.Equal(t, 0, x.Len(), "a failed batch adds nothing")

	untrained := New(quantization.MustNew(quantization.Config{Segments: 2, ClusterCount: 4, Dimension: 4}))
	assert.ErrorIs(t, untrained.AddVector(queryA, 1), quantization.ErrNotTrained)
}

func TestMerge_WithEmptyIsIdentity(t *testing.T) {
	d := randomDataset(t, 300)
	x := d.build(t, 0, len(d.vectors))
	want := searchAll(t, x, d.queries, 2, 10)

	x.Merge(New(d.q))
	x.Merge(nil)
	x.Merge(x)

	assert.Equal(t, want, searchAll(t, x, d.queries, 2, 10))
}

func TestMerge_Commutative(t *testing.T) {
	d := randomDataset(t, 300)
	half := len(d.vectors) / 2

	ab := d.build(t, 0, half)
	ab.Merge(d.build(t, half, len(d.vectors)))

	ba := d.build(t, half, len(d.vectors))
	ba.Merge(d.build(t, 0, half))

	whole := d.build(t, 0, len(d.vectors))

	for _, v := range d.queries {
		for _, k := range []int{1, 2, 4} {
			want, err := whole.SearchBitmap(v, k)
			require.NoError(t, err)
			got1, err := ab.SearchBitmap(v, k)
			require.NoError(t, err)
			got2, err := ba.SearchBitmap(v, k)
			require.NoError(t, err)

			assert.True(t, got1.Equals(got2))
			assert.True(t, got1.Equals(want))
		}
	}
}

func TestMerge_QuantizerMismatchIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	x := fourClusterIndex(t, WithLogger(logger))
	d := randomDataset(t, 50)
	other := New(d.q)
	require.NoError(t, other.AddVector(d.vectors[0], 1000))

	x.Merge(other)

	assert.Contains(t, buf.String(), "different quantizers")
	assert.Equal(t, 9, x.Len(), "the merge still proceeds")
}

func TestMerge_UnionsTombstonesAndVectors(t *testing.T) {
	a := fourClusterIndex(t)
	b := New(a.Quantizer())
	vecs := fourClusters()
	require.NoError(t, b.AddVector(vecs[7], 0))
	b.Delete(3)

	a.Merge(b)

	assert.True(t, a.Tombstones().Contains(3))
	assert.Equal(t, [][]float32{vecs[7]}, a.Vectors(0), "the merged index wins on collisions")
}

func TestStoreLoad_RoundTrip(t *testing.T) {
	d := randomDataset(t, 2000)
	cfg := Config{MapCapacity: 8 << 10, MapLowWater: 2 << 10, ReadWindow: 1}
	x := d.build(t, 0, len(d.vectors), WithConfig(cfg), WithBlobOptions(persistence.WithCompression(persistence.CompressionLZ4)))

	dir := filepath.Join(t.TempDir(), "index") + string(os.PathSeparator)
	require.NoError(t, x.Store(dir, "full"))

	for _, f := range []string{"full.key", "full.bitmap", "full.vector"} {
		assert.FileExists(t, filepath.Join(dir, f))
	}

	loaded := New(d.q, WithConfig(cfg))
	require.NoError(t, loaded.Load(dir, "full"))
	assert.Equal(t, x.Len(), loaded.Len())
	assert.Equal(t, x.Terms(), loaded.Terms())

	for _, k := range []int{1, 3} {
		assert.Equal(t, searchAll(t, x, d.queries, k, 10), searchAll(t, loaded, d.queries, k, 10))
	}
}

func TestDelete(t *testing.T) {
	x := fourClusterIndex(t)
	x.Delete(0)

	assert.Equal(t, 7, x.Len())
	assert.Nil(t, x.Vectors(0))
	assert.ErrorIs(t, x.AddVector(queryA, 0), ErrDeleted)

	res, err := x.Search(queryA, 1, 2)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, uint32(1), res[0].ID)

	res, err = x.Rerank(queryA, roaring.BitmapOf(0, 1), 2)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, uint32(1), res[0].ID)
}

func TestDelete_AfterStoreLoad(t *testing.T) {
	dir := t.TempDir()
	x := fourClusterIndex(t)
	x.Delete(0, 1)
	require.NoError(t, x.Store(dir, "full"))
	assert.True(t, x.Tombstones().IsEmpty(), "store compacts tombstones")

	loaded := New(x.Quantizer())
	require.NoError(t, loaded.Load(dir, "full"))

	for _, clusterTopn := range []int{1, 2, 4} {
		res, err := loaded.Search(queryA, clusterTopn, 8)
		require.NoError(t, err)
		for _, r := range res {
			assert.NotContains(t, []uint32{0, 1}, r.ID)
		}
	}

	_, _, vectorFile := Files(dir, "full")
	var table map[uint32][][]float32
	require.NoError(t, persistence.Load(vectorFile, &table))
	assert.Len(t, table, 6)
	assert.NotContains(t, table, uint32(0))
	assert.NotContains(t, table, uint32(1))

	// Ids are free again once compacted.
	require.NoError(t, x.AddVector(queryA, 0))
}

func TestLoad_FiltersTombstones(t *testing.T) {
	dir := t.TempDir()
	x := fourClusterIndex(t)
	require.NoError(t, x.Store(dir, "full"))

	loaded := New(x.Quantizer())
	loaded.Delete(0)
	require.NoError(t, loaded.Load(dir, "full"))

	assert.Equal(t, 7, loaded.Len())
	bm, err := loaded.SearchBitmap(queryA, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1}, bm.ToArray())
}

func TestLoad_MissingFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "fresh")
	x := fourClusterIndex(t)

	require.NoError(t, x.Load(dir, "full"))
	assert.Equal(t, 0, x.Len())
	assert.Equal(t, 0, x.Terms())

	keys, bitmaps, vectors := Files(dir, "full")
	for _, f := range []string{keys, bitmaps, vectors} {
		fi, err := os.Stat(f)
		require.NoError(t, err)
		assert.Zero(t, fi.Size())
	}

	res, err := x.Search(queryA, 1, 2)
	require.NoError(t, err)
	assert.Empty(t, res)

	// Loading the empty files again stays empty.
	require.NoError(t, x.Load(dir, "full"))
	assert.Equal(t, 0, x.Len())
}

func TestLoad_Corrupt(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	dir := t.TempDir()
	keys, bitmaps, _ := Files(dir, "full")
	require.NoError(t, persistence.Save(keys, []uint64{1, 2}))

	// One record claiming 100 bytes but holding 10.
	rec := binary.BigEndian.AppendUint32(nil, 100)
	rec = append(rec, make([]byte, 10)...)
	require.NoError(t, os.WriteFile(bitmaps, rec, 0o644))

	x := fourClusterIndex(t, WithLogger(logger))
	require.NoError(t, x.Load(dir, "full"))
	assert.Equal(t, 0, x.Len())
	assert.Equal(t, 0, x.Terms())
	assert.Contains(t, buf.String(), "index unreadable")
}

func TestCollidingHasher(t *testing.T) {
	// Every centroid of a segment shares one posting.
	collide := TermHasherFunc(func(segment, _ int) uint64 { return uint64(segment) })
	x := fourClusterIndex(t, WithTermHasher(collide))
	assert.Equal(t, 2, x.Terms())

	bm, err := x.SearchBitmap(queryA, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), bm.GetCardinality(), "collisions only widen recall")

	res, err := x.Search(queryA, 1, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, uint32(0), res[0].ID)
	assert.Equal(t, uint32(1), res[1].ID)

	dir := t.TempDir()
	require.NoError(t, x.Store(dir, "c"))
	loaded := New(x.Quantizer(), WithTermHasher(collide))
	require.NoError(t, loaded.Load(dir, "c"))
	got, err := loaded.Search(queryA, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, res, got)
}

func TestXXHasher(t *testing.T) {
	var h XXHasher
	assert.Equal(t, h.Term(3, 7), h.Term(3, 7))
	assert.NotEqual(t, h.Term(1, 11), h.Term(11, 1))
	assert.NotEqual(t, h.Term(0, 1), h.Term(1, 0))
}

func TestConfigDefaults(t *testing.T) {
	x := New(fourClusterQuantizer(t), WithWorkers(3), WithConfig(Config{MaxRecall: 10}))
	cfg := x.Config()
	assert.Equal(t, 10, cfg.MaxRecall)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, DefaultConfig().MapCapacity, cfg.MapCapacity)
	assert.Equal(t, DefaultConfig().MapLowWater, cfg.MapLowWater)
	assert.Equal(t, DefaultConfig().ReadWindow, cfg.ReadWindow)
}
