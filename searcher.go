package vecsearch

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/vecsearch/embed"
	"github.com/hupe1980/vecsearch/index"
	"github.com/hupe1980/vecsearch/quantization"
)

// Hit is a search result: a document, its distance to the query and its
// text chunks in insertion order.
type Hit struct {
	ID       uint32   `json:"id"`
	Distance float32  `json:"distance"`
	Texts    []string `json:"texts"`
}

// Searcher maps document ids to text chunks, embeds text and delegates to an
// inverted index.
type Searcher struct {
	opts     options
	q        *quantization.Quantizer
	embedder embed.Embedder
	idx      *index.Index

	mu   sync.RWMutex
	docs map[uint32][]string
}

// New creates an empty Searcher. The embedder must produce vectors of the
// quantizer's dimension.
func New(q *quantization.Quantizer, e embed.Embedder, optFns ...Option) *Searcher {
	o := applyOptions(optFns)

	idxOpts := []index.Option{
		index.WithConfig(o.indexConfig),
		index.WithLogger(o.logger.Slog()),
		index.WithBlobOptions(o.blobOpts...),
	}
	if o.termHasher != nil {
		idxOpts = append(idxOpts, index.WithTermHasher(o.termHasher))
	}

	if e.Dimensions() != q.Dimension() {
		o.logger.Warn("embedder and quantizer dimensions differ",
			"embedder", e.Dimensions(),
			"quantizer", q.Dimension(),
		)
	}

	return &Searcher{
		opts:     o,
		q:        q,
		embedder: e,
		idx:      index.New(q, idxOpts...),
		docs:     make(map[uint32][]string),
	}
}

// Index returns the underlying inverted index.
func (s *Searcher) Index() *index.Index { return s.idx }

// Quantizer returns the quantizer.
func (s *Searcher) Quantizer() *quantization.Quantizer { return s.q }

// Len returns the number of documents.
func (s *Searcher) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.docs)
}

// Texts returns the text chunks of id.
func (s *Searcher) Texts(id uint32) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.docs[id])
}

// AddText embeds text and indexes it under id. Repeated calls with one id
// accumulate chunks. If embedding fails the text is not recorded.
func (s *Searcher) AddText(ctx context.Context, id uint32, text string) error {
	start := time.Now()

	v, err := s.embedder.Embed(ctx, text)
	if err == nil {
		err = s.add(id, text, v)
	}

	s.opts.metricsCollector.RecordAdd(time.Since(start), err)
	s.opts.logger.LogAdd(ctx, id, err)
	return err
}

// AddTexts adds texts[i] under ids[i]. Items whose embedding or indexing
// fails are logged and skipped; the rest of the batch still goes in. It
// returns the number of texts added. Only mismatched slice lengths or a
// cancelled context are errors.
func (s *Searcher) AddTexts(ctx context.Context, ids []uint32, texts []string) (int, error) {
	if len(ids) != len(texts) {
		return 0, &ErrLengthMismatch{Vectors: len(texts), IDs: len(ids)}
	}
	start := time.Now()

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil || len(vectors) != len(texts) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		s.opts.logger.WarnContext(ctx, "batch embedding failed, embedding one by one", "error", err)
		vectors = make([][]float32, len(texts))
		for i, text := range texts {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			v, err := s.embedder.Embed(ctx, text)
			if err != nil {
				s.opts.logger.LogAdd(ctx, ids[i], err)
				continue
			}
			vectors[i] = v
		}
	}

	added := 0
	for i, v := range vectors {
		if v == nil {
			continue
		}
		if err := s.add(ids[i], texts[i], v); err != nil {
			s.opts.logger.LogAdd(ctx, ids[i], err)
			continue
		}
		added++
	}

	failed := len(texts) - added
	s.opts.metricsCollector.RecordBatchAdd(len(texts), failed, time.Since(start))
	s.opts.logger.LogBatchAdd(ctx, len(texts), failed)
	return added, nil
}

func (s *Searcher) add(id uint32, text string, v []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.idx.AddVector(v, id); err != nil {
		return err
	}
	s.docs[id] = append(s.docs[id], text)

	if s.opts.lexical != nil {
		if err := s.opts.lexical.Add(id, text); err != nil {
			s.opts.logger.Warn("keyword index add failed", "id", id, "error", err)
		}
	}
	return nil
}

// SearchText returns up to topn documents nearest to query, recalling from
// the clusterTopn nearest centroids of every segment.
func (s *Searcher) SearchText(ctx context.Context, query string, clusterTopn, topn int) ([]Hit, error) {
	start := time.Now()

	hits, err := s.searchText(ctx, query, clusterTopn, topn)

	s.opts.metricsCollector.RecordSearch(topn, time.Since(start), err)
	s.opts.logger.LogSearch(ctx, clusterTopn, topn, len(hits), err)
	return hits, err
}

func (s *Searcher) searchText(ctx context.Context, query string, clusterTopn, topn int) ([]Hit, error) {
	v, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results, err := s.idx.Search(v, clusterTopn, topn)
	if err != nil {
		return nil, err
	}
	return s.join(results), nil
}

// SearchTextFiltered is SearchText restricted to documents containing every
// word of keywords. Blank keywords fall back to SearchText.
func (s *Searcher) SearchTextFiltered(ctx context.Context, query, keywords string, clusterTopn, topn int) ([]Hit, error) {
	if strings.TrimSpace(keywords) == "" {
		return s.SearchText(ctx, query, clusterTopn, topn)
	}
	start := time.Now()

	hits, err := s.searchFiltered(ctx, query, keywords, clusterTopn, topn)

	s.opts.metricsCollector.RecordSearch(topn, time.Since(start), err)
	s.opts.logger.LogSearch(ctx, clusterTopn, topn, len(hits), err)
	return hits, err
}

func (s *Searcher) searchFiltered(ctx context.Context, query, keywords string, clusterTopn, topn int) ([]Hit, error) {
	if s.opts.lexical == nil {
		return nil, ErrNoLexicalIndex
	}

	v, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	recall, err := s.idx.SearchBitmap(v, clusterTopn)
	if err != nil {
		return nil, err
	}
	matching, err := s.opts.lexical.Match(keywords)
	if err != nil {
		return nil, err
	}
	recall.And(matching)

	results, err := s.idx.Rerank(v, recall, topn)
	if err != nil {
		return nil, err
	}
	return s.join(results), nil
}

func (s *Searcher) join(results []index.Result) []Hit {
	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{
			ID:       r.ID,
			Distance: r.Distance,
			Texts:    slices.Clone(s.docs[r.ID]),
		}
	}
	return hits
}

// Delete removes documents. They disappear from results at once and from
// disk on the next Store.
func (s *Searcher) Delete(ctx context.Context, ids ...uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.idx.Delete(ids...)
	for _, id := range ids {
		delete(s.docs, id)
		if s.opts.lexical != nil {
			if err := s.opts.lexical.Delete(id); err != nil {
				s.opts.logger.WarnContext(ctx, "keyword index delete failed", "id", id, "error", err)
			}
		}
	}

	s.opts.metricsCollector.RecordDelete(len(ids))
	s.opts.logger.LogDelete(ctx, len(ids))
}

// Close releases the embedder and the keyword index.
func (s *Searcher) Close() error {
	var errs []error
	if err := s.embedder.Close(); err != nil {
		errs = append(errs, err)
	}
	if s.opts.lexical != nil {
		if err := s.opts.lexical.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
