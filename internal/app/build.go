package app

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/hupe1980/vecsearch"
	"github.com/hupe1980/vecsearch/internal/config"
	"github.com/hupe1980/vecsearch/loader"
	"github.com/hupe1980/vecsearch/quantization"
)

// BatchSize is the number of records embedded per call.
const BatchSize = 256

// LoadRecords reads the document file at path with the configured chunking.
func (a *App) LoadRecords(path string) ([]loader.Record, error) {
	return loader.LoadFile(path,
		loader.WithChunking(a.Config.Loader.ChunkSize, a.Config.Loader.ChunkOverlap),
		loader.WithLogger(a.Logger.Slog()),
	)
}

// Train embeds a sample of records, trains a quantizer on it and stores the
// model under col's model directory.
func (a *App) Train(ctx context.Context, col config.CollectionConfig, records []loader.Record) (*quantization.Quantizer, error) {
	if len(records) == 0 {
		return nil, quantization.ErrNoTrainingData
	}

	blobOpts, err := BlobOptions(a.Config.Storage)
	if err != nil {
		return nil, err
	}

	q, err := quantization.New(a.Config.QuantizationConfig(),
		quantization.WithLogger(a.Logger.Slog()),
		quantization.WithBlobOptions(blobOpts...),
	)
	if err != nil {
		return nil, err
	}

	texts := sampleTexts(records, a.Config.Quantizer.MaxTrainVectors, a.Config.Quantizer.Seed)

	start := time.Now()
	vectors, err := a.embedSample(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed training sample: %w", err)
	}
	a.Logger.InfoContext(ctx, "training sample embedded",
		"collection", col.Name,
		"vectors", len(vectors),
		"skipped", len(texts)-len(vectors),
		"took", time.Since(start),
	)

	if err := q.Train(vectors); err != nil {
		return nil, err
	}
	if err := q.Store(col.ModelPath()); err != nil {
		return nil, err
	}
	return q, nil
}

// embedSample embeds texts in batches. When a batch fails, its texts are
// embedded one by one and the ones that still fail are logged and dropped.
// It fails only when ctx is done or no text could be embedded.
func (a *App) embedSample(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))

	var lastErr error
	for lo := 0; lo < len(texts); lo += BatchSize {
		hi := min(lo+BatchSize, len(texts))

		batch, err := a.Embedder.EmbedBatch(ctx, texts[lo:hi])
		if err == nil && len(batch) == hi-lo {
			vectors = append(vectors, batch...)
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		a.Logger.WarnContext(ctx, "batch embedding failed, embedding one by one", "error", err)

		for _, text := range texts[lo:hi] {
			v, err := a.Embedder.Embed(ctx, text)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				a.Logger.WarnContext(ctx, "skipping training text", "error", err)
				lastErr = err
				continue
			}
			vectors = append(vectors, v)
		}
	}

	if len(vectors) == 0 && lastErr != nil {
		return nil, fmt.Errorf("no text could be embedded: %w", lastErr)
	}
	return vectors, nil
}

// Index adds records to a new Searcher over q and stores it under col's
// index directory. The returned Searcher is open.
func (a *App) Index(ctx context.Context, col config.CollectionConfig, q *quantization.Quantizer, records []loader.Record, opts ...vecsearch.Option) (*vecsearch.Searcher, error) {
	s, err := a.NewSearcher(col, q, opts...)
	if err != nil {
		return nil, err
	}

	if err := a.add(ctx, s, records); err != nil {
		_ = s.Close()
		return nil, err
	}

	if err := s.Store(col.IndexPath()); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Build trains a quantizer on the records of path, indexes them and stores
// both artifacts of col.
func (a *App) Build(ctx context.Context, col config.CollectionConfig, path string, opts ...vecsearch.Option) (*vecsearch.Searcher, error) {
	records, err := a.LoadRecords(path)
	if err != nil {
		return nil, err
	}

	q, err := a.Train(ctx, col, records)
	if err != nil {
		return nil, err
	}
	return a.Index(ctx, col, q, records, opts...)
}

func (a *App) add(ctx context.Context, s *vecsearch.Searcher, records []loader.Record) error {
	ids := make([]uint32, 0, BatchSize)
	texts := make([]string, 0, BatchSize)

	added := 0
	for lo := 0; lo < len(records); lo += BatchSize {
		hi := min(lo+BatchSize, len(records))

		ids, texts = ids[:0], texts[:0]
		for _, r := range records[lo:hi] {
			ids = append(ids, r.ID)
			texts = append(texts, r.Text)
		}

		n, err := s.AddTexts(ctx, ids, texts)
		if err != nil {
			return err
		}
		added += n
	}

	a.Logger.InfoContext(ctx, "records indexed",
		"records", len(records),
		"added", added,
		"documents", s.Len(),
	)
	return nil
}

// sampleTexts returns the texts of up to limit records chosen uniformly
// without replacement. A limit of zero or one at least len(records) keeps
// every record.
func sampleTexts(records []loader.Record, limit int, seed int64) []string {
	if limit <= 0 || limit >= len(records) {
		texts := make([]string, len(records))
		for i, r := range records {
			texts[i] = r.Text
		}
		return texts
	}

	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
	perm := rng.Perm(len(records))[:limit]

	texts := make([]string, limit)
	for i, j := range perm {
		texts[i] = records[j].Text
	}
	return texts
}
