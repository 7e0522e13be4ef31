package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecsearch/blobstore"
	"github.com/hupe1980/vecsearch/embed"
	"github.com/hupe1980/vecsearch/internal/config"
	"github.com/hupe1980/vecsearch/lexical/memory"
	"github.com/hupe1980/vecsearch/loader"
	"github.com/hupe1980/vecsearch/quantization"
)

var rows = []struct {
	id    uint32
	title string
	body  string
}{
	{1, "Refunds", "refund policy for damaged goods"},
	{2, "Refunds", "how to request a refund for a late parcel"},
	{3, "Shipping", "parcel tracking and delivery status"},
	{4, "Shipping", "delivery delays during holiday season"},
	{5, "Account", "reset your account password"},
	{6, "Account", "two factor authentication for your account"},
	{7, "Billing", "invoice overdue payment reminder"},
	{8, "Billing", "change billing address on invoice"},
	{9, "Devices", "warranty claims for broken devices"},
	{10, "Devices", "device firmware update instructions"},
	{11, "Stores", "store opening hours on weekends"},
	{12, "Support", "contact customer support by phone"},
}

func rowText(i int) string {
	return rows[i].title + "\t" + rows[i].body
}

func writeTSV(t *testing.T, dir string) string {
	t.Helper()

	var b strings.Builder
	b.WriteString("id\ttitle\tbody\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%d\t%s\t%s\n", r.id, r.title, r.body)
	}

	path := filepath.Join(dir, "docs.tsv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}

func newTestApp(t *testing.T) (*App, config.CollectionConfig) {
	t.Helper()
	dir := t.TempDir()

	cfg, err := config.Parse([]byte(fmt.Sprintf(`
log:
  level: debug
embedding:
  provider: hash
  dimensions: 32
  cache_size: 100
quantizer:
  segments: 4
  cluster_count: 4
  max_iterations: 20
  seed: 7
snapshot:
  backend: local
  local_dir: %s
collections:
  - name: docs
    data_dir: %s
    field_names: [title, body]
    lexical_path: memory
`, filepath.Join(dir, "snapshots"), filepath.Join(dir, "docs"))))
	require.NoError(t, err)

	a, err := New(cfg, &bytes.Buffer{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	col, err := cfg.Collection("")
	require.NoError(t, err)
	return a, col
}

func TestBuildAndOpen(t *testing.T) {
	ctx := context.Background()
	a, col := newTestApp(t)

	s, err := a.Build(ctx, col, writeTSV(t, t.TempDir()))
	require.NoError(t, err)
	require.Equal(t, len(rows), s.Len())
	require.NoError(t, s.Close())

	assert.FileExists(t, filepath.Join(col.ModelPath(), quantization.ParamsFile))
	assert.DirExists(t, col.IndexPath())

	s, err = a.OpenCollection(ctx, col)
	require.NoError(t, err)
	defer s.Close()

	require.Equal(t, len(rows), s.Len())
	assert.Equal(t, []string{rowText(0)}, s.Texts(1))

	hits, err := s.SearchText(ctx, rowText(0), 2, 3)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, uint32(1), hits[0].ID)
	assert.InDelta(t, 0, hits[0].Distance, 1e-5)

	hits, err = s.SearchTextFiltered(ctx, rowText(0), "parcel", 4, 10)
	require.NoError(t, err)
	ids := make([]uint32, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	assert.ElementsMatch(t, []uint32{2, 3}, ids)
}

func TestOpenCollectionMissingModel(t *testing.T) {
	a, col := newTestApp(t)

	_, err := a.OpenCollection(context.Background(), col)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collection docs")
}

func TestTrainWithoutRecords(t *testing.T) {
	a, col := newTestApp(t)

	_, err := a.Train(context.Background(), col, nil)
	require.ErrorIs(t, err, quantization.ErrNoTrainingData)
}

func TestTrainCanceled(t *testing.T) {
	a, col := newTestApp(t)
	records, err := a.LoadRecords(writeTSV(t, t.TempDir()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = a.Train(ctx, col, records)
	require.ErrorIs(t, err, context.Canceled)
}

// failingEmbedder fails for every text containing bad.
type failingEmbedder struct {
	embed.Embedder
	bad string
}

func (e failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.Contains(text, e.bad) {
		return nil, errors.New("embedding backend unavailable")
	}
	return e.Embedder.Embed(ctx, text)
}

func (e failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func TestBuildSkipsFailedEmbeddings(t *testing.T) {
	ctx := context.Background()
	a, col := newTestApp(t)
	a.Embedder = failingEmbedder{Embedder: a.Embedder, bad: rows[4].body}

	s, err := a.Build(ctx, col, writeTSV(t, t.TempDir()))
	require.NoError(t, err)
	defer s.Close()

	assert.FileExists(t, filepath.Join(col.ModelPath(), quantization.ParamsFile))
	assert.Equal(t, len(rows)-1, s.Len())
	assert.Empty(t, s.Texts(rows[4].id))
	assert.Equal(t, []string{rowText(0)}, s.Texts(1))
}

func TestTrainAllEmbeddingsFail(t *testing.T) {
	a, col := newTestApp(t)
	records, err := a.LoadRecords(writeTSV(t, t.TempDir()))
	require.NoError(t, err)

	a.Embedder = failingEmbedder{Embedder: a.Embedder, bad: "\t"}

	_, err = a.Train(context.Background(), col, records)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding backend unavailable")
	assert.NoFileExists(t, filepath.Join(col.ModelPath(), quantization.ParamsFile))
}

func TestSampleTexts(t *testing.T) {
	records := make([]loader.Record, 20)
	for i := range records {
		records[i] = loader.Record{ID: uint32(i), Text: fmt.Sprintf("text %d", i)}
	}

	assert.Len(t, sampleTexts(records, 0, 1), 20)
	assert.Len(t, sampleTexts(records, 50, 1), 20)

	a := sampleTexts(records, 5, 1)
	b := sampleTexts(records, 5, 1)
	require.Len(t, a, 5)
	assert.Equal(t, a, b)

	seen := make(map[string]bool)
	for _, text := range a {
		assert.False(t, seen[text], "duplicate %q", text)
		seen[text] = true
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	l, err := NewLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)
	l.Info("hidden")
	l.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	_, err = NewLogger(config.LogConfig{Level: "loud"}, &buf)
	require.Error(t, err)

	_, err = NewLogger(config.LogConfig{Level: "info", Format: "xml"}, &buf)
	require.Error(t, err)
}

func TestBlobOptions(t *testing.T) {
	opts, err := BlobOptions(config.StorageConfig{Codec: "go-json", Compression: "zstd"})
	require.NoError(t, err)
	assert.Len(t, opts, 2)

	_, err = BlobOptions(config.StorageConfig{Codec: "gob"})
	require.Error(t, err)

	_, err = BlobOptions(config.StorageConfig{Codec: "msgpack", Compression: "brotli"})
	require.Error(t, err)
}

func TestOpenEmbedder(t *testing.T) {
	e, err := OpenEmbedder(config.EmbeddingConfig{Provider: "hash", Dimensions: 16, CacheSize: -1})
	require.NoError(t, err)
	assert.Equal(t, 16, e.Dimensions())

	_, err = OpenEmbedder(config.EmbeddingConfig{Provider: "word2vec"})
	require.Error(t, err)
}

func TestOpenLexical(t *testing.T) {
	x, err := OpenLexical(config.CollectionConfig{})
	require.NoError(t, err)
	assert.Nil(t, x)

	x, err = OpenLexical(config.CollectionConfig{LexicalPath: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &memory.Index{}, x)

	x, err = OpenLexical(config.CollectionConfig{LexicalPath: filepath.Join(t.TempDir(), "kw")})
	require.NoError(t, err)
	require.NoError(t, x.Close())
}

func TestOpenBlobStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := OpenBlobStore(ctx, config.SnapshotConfig{Backend: "local", LocalDir: dir}, "docs")
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "a", []byte("x")))
	assert.FileExists(t, filepath.Join(dir, "docs", "a"))

	_, err = OpenBlobStore(ctx, config.SnapshotConfig{Backend: "minio"}, "docs")
	require.Error(t, err)

	_, err = OpenBlobStore(ctx, config.SnapshotConfig{Backend: "ftp"}, "docs")
	require.Error(t, err)
}

func TestPublishFetch(t *testing.T) {
	ctx := context.Background()
	a, col := newTestApp(t)

	s, err := a.Build(ctx, col, writeTSV(t, t.TempDir()))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	syncer, err := a.NewSyncer(ctx, col.Name)
	require.NoError(t, err)

	m, err := syncer.Publish(ctx, col.DataDir)
	require.NoError(t, err)
	assert.NotEmpty(t, m.Files)

	replica := col
	replica.DataDir = filepath.Join(t.TempDir(), "replica")
	_, err = syncer.Fetch(ctx, replica.DataDir)
	require.NoError(t, err)

	s, err = a.OpenCollection(ctx, replica)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, len(rows), s.Len())

	store, err := OpenBlobStore(ctx, a.Config.Snapshot, col.Name)
	require.NoError(t, err)
	current, err := blobstore.ReadAll(ctx, store, blobstore.Current)
	require.NoError(t, err)
	assert.Equal(t, m.ID, string(current))
}
