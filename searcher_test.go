package vecsearch

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hupe1980/vecsearch/embed"
	"github.com/hupe1980/vecsearch/lexical/memory"
	"github.com/hupe1980/vecsearch/quantization"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testDim      = 32
	testClusters = 4
)

var corpus = []struct {
	id   uint32
	text string
}{
	{1, "refund policy for damaged goods"},
	{2, "how to request a refund for a late parcel"},
	{3, "parcel tracking and delivery status"},
	{4, "delivery delays during holiday season"},
	{5, "reset your account password"},
	{6, "two factor authentication for your account"},
	{7, "invoice overdue payment reminder"},
	{8, "change billing address on invoice"},
	{9, "warranty claims for broken devices"},
	{10, "device firmware update instructions"},
	{11, "store opening hours on weekends"},
	{12, "contact customer support by phone"},
}

func newTestSearcher(t *testing.T, opts ...Option) (*Searcher, *quantization.Quantizer) {
	t.Helper()
	ctx := context.Background()
	e := embed.NewHashEmbedder(testDim)

	texts := make([]string, len(corpus))
	for i, d := range corpus {
		texts[i] = d.text
	}
	vectors, err := e.EmbedBatch(ctx, texts)
	require.NoError(t, err)

	q, err := quantization.New(quantization.Config{Segments: 4, ClusterCount: testClusters, Dimension: testDim})
	require.NoError(t, err)
	require.NoError(t, q.Train(vectors))

	return New(q, e, opts...), q
}

func fill(t *testing.T, s *Searcher) {
	t.Helper()
	for _, d := range corpus {
		require.NoError(t, s.AddText(context.Background(), d.id, d.text))
	}
}

func TestSearchText(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSearcher(t)
	fill(t, s)
	assert.Equal(t, len(corpus), s.Len())

	for _, d := range corpus {
		hits, err := s.SearchText(ctx, d.text, testClusters, 3)
		require.NoError(t, err)
		require.NotEmpty(t, hits)
		assert.Equal(t, d.id, hits[0].ID)
		assert.InDelta(t, 0, hits[0].Distance, 1e-5)
		assert.Equal(t, []string{d.text}, hits[0].Texts)
		for i := 1; i < len(hits); i++ {
			assert.LessOrEqual(t, hits[i-1].Distance, hits[i].Distance)
		}
	}
}

func TestSearchText_Empty(t *testing.T) {
	s, _ := newTestSearcher(t)

	hits, err := s.SearchText(context.Background(), "refund", 1, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestAddText_MultipleChunks(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSearcher(t)

	require.NoError(t, s.AddText(ctx, 7, "invoice overdue payment reminder"))
	require.NoError(t, s.AddText(ctx, 7, "change billing address on invoice"))
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, []string{"invoice overdue payment reminder", "change billing address on invoice"}, s.Texts(7))

	hits, err := s.SearchText(ctx, "change billing address on invoice", testClusters, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 0, hits[0].Distance, 1e-5, "distance is the minimum over the chunks")
}

func TestAddText_EmbedFailure(t *testing.T) {
	metrics := &BasicMetricsCollector{}
	s, _ := newTestSearcher(t, WithMetricsCollector(metrics))

	err := s.AddText(context.Background(), 1, "   ")
	assert.ErrorIs(t, err, embed.ErrEmptyText)
	assert.Equal(t, 0, s.Len(), "the text is not recorded")
	assert.Nil(t, s.Texts(1))

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.AddCount)
	assert.Equal(t, int64(1), stats.AddErrors)
}

func TestAddTexts_SkipsFailures(t *testing.T) {
	metrics := &BasicMetricsCollector{}
	s, _ := newTestSearcher(t, WithMetricsCollector(metrics))

	ids := []uint32{1, 2, 3}
	texts := []string{corpus[0].text, "", corpus[2].text}
	added, err := s.AddTexts(context.Background(), ids, texts)
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, 2, s.Len())
	assert.Nil(t, s.Texts(2))

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.BatchAddCount)
	assert.Equal(t, int64(3), stats.BatchAddItems)
	assert.Equal(t, int64(1), stats.BatchAddFailed)

	_, err = s.AddTexts(context.Background(), []uint32{1}, texts)
	var lm *ErrLengthMismatch
	assert.ErrorAs(t, err, &lm)
}

func TestAddTexts_Cancelled(t *testing.T) {
	s, _ := newTestSearcher(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.AddTexts(ctx, []uint32{1}, []string{"refund"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, s.Len())
}

func TestSearchTextFiltered(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSearcher(t, WithLexicalIndex(memory.New()))
	fill(t, s)

	hits, err := s.SearchTextFiltered(ctx, "refund policy for damaged goods", "parcel", testClusters, 10)
	require.NoError(t, err)
	ids := make([]uint32, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	assert.ElementsMatch(t, []uint32{2, 3}, ids)

	hits, err = s.SearchTextFiltered(ctx, "refund", "parcel refund", testClusters, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, uint32(2), hits[0].ID)

	hits, err = s.SearchTextFiltered(ctx, "refund", "unicorn", testClusters, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	// Blank keywords mean no filter.
	hits, err = s.SearchTextFiltered(ctx, corpus[4].text, " ", testClusters, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, corpus[4].id, hits[0].ID)
}

func TestSearchTextFiltered_NoLexicalIndex(t *testing.T) {
	s, _ := newTestSearcher(t)
	fill(t, s)

	_, err := s.SearchTextFiltered(context.Background(), "refund", "parcel", 1, 10)
	assert.ErrorIs(t, err, ErrNoLexicalIndex)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	metrics := &BasicMetricsCollector{}
	s, _ := newTestSearcher(t, WithLexicalIndex(memory.New()), WithMetricsCollector(metrics))
	fill(t, s)

	s.Delete(ctx, 1, 2)
	assert.Equal(t, len(corpus)-2, s.Len())
	assert.Nil(t, s.Texts(1))
	assert.Equal(t, int64(2), metrics.GetStats().DeleteCount)

	hits, err := s.SearchText(ctx, corpus[0].text, testClusters, len(corpus))
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotContains(t, []uint32{1, 2}, h.ID)
	}

	hits, err = s.SearchTextFiltered(ctx, "refund", "refund", testClusters, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	assert.ErrorIs(t, s.AddText(ctx, 1, "back again"), ErrDeleted)
}

func TestStoreLoad(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "index")

	s, q := newTestSearcher(t)
	fill(t, s)
	s.Delete(ctx, 12)
	require.NoError(t, s.Store(dir))

	assert.FileExists(t, filepath.Join(dir, DocsFile))
	assert.FileExists(t, filepath.Join(dir, IndexDir, IndexPrefix+".key"))
	assert.FileExists(t, filepath.Join(dir, IndexDir, IndexPrefix+".bitmap"))
	assert.FileExists(t, filepath.Join(dir, IndexDir, IndexPrefix+".vector"))

	loaded := New(q, embed.NewHashEmbedder(testDim), WithLexicalIndex(memory.New()))
	require.NoError(t, loaded.Load(dir))
	assert.Equal(t, s.Len(), loaded.Len())
	assert.Nil(t, loaded.Texts(12))

	for _, d := range corpus {
		for _, clusterTopn := range []int{1, 2, testClusters} {
			want, err := s.SearchText(ctx, d.text, clusterTopn, 5)
			require.NoError(t, err)
			got, err := loaded.SearchText(ctx, d.text, clusterTopn, 5)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	}

	// The keyword index is rebuilt from the loaded documents.
	hits, err := loaded.SearchTextFiltered(ctx, "invoice", "invoice", testClusters, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	// Loading twice does not duplicate keyword entries.
	require.NoError(t, loaded.Load(dir))
	hits, err = loaded.SearchTextFiltered(ctx, "invoice", "invoice", testClusters, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestLoad_ForgetsKeywordsOfReplacedDocuments(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "index")

	stored, q := newTestSearcher(t)
	for _, d := range corpus[4:] {
		require.NoError(t, stored.AddText(ctx, d.id, d.text))
	}
	require.NoError(t, stored.Store(dir))

	lx := memory.New()
	s := New(q, embed.NewHashEmbedder(testDim), WithLexicalIndex(lx))
	fill(t, s)

	ids, err := lx.Match("parcel")
	require.NoError(t, err)
	require.Equal(t, []uint32{2, 3}, ids.ToArray())

	require.NoError(t, s.Load(dir))
	assert.Equal(t, len(corpus)-4, s.Len())

	ids, err = lx.Match("parcel")
	require.NoError(t, err)
	assert.True(t, ids.IsEmpty())

	ids, err = lx.Match("invoice")
	require.NoError(t, err)
	assert.Equal(t, []uint32{7, 8}, ids.ToArray())
}

func TestLoad_Missing(t *testing.T) {
	s, _ := newTestSearcher(t)
	fill(t, s)

	require.NoError(t, s.Load(filepath.Join(t.TempDir(), "nothing-here")))
	assert.Equal(t, 0, s.Len())

	hits, err := s.SearchText(context.Background(), corpus[0].text, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

type closeErrEmbedder struct{ *embed.HashEmbedder }

func (closeErrEmbedder) Close() error { return errors.New("close failed") }

func TestClose(t *testing.T) {
	s, q := newTestSearcher(t, WithLexicalIndex(memory.New()))
	require.NoError(t, s.Close())

	s = New(q, closeErrEmbedder{embed.NewHashEmbedder(testDim)})
	assert.EqualError(t, s.Close(), "close failed")
}

func TestOptions(t *testing.T) {
	o := applyOptions([]Option{WithLogger(nil), WithMetricsCollector(nil), WithCodec(nil), nil})
	assert.NotNil(t, o.logger)
	assert.IsType(t, NoopMetricsCollector{}, o.metricsCollector)
	assert.Len(t, o.blobOpts, 1)
}
