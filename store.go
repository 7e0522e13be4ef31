package vecsearch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hupe1980/vecsearch/persistence"
)

// Layout of a stored Searcher.
const (
	// DocsFile holds the document id to text chunks table.
	DocsFile = "docs.bin"
	// IndexDir is the subdirectory of the inverted index.
	IndexDir = "ivt"
	// IndexPrefix is the file prefix of the inverted index.
	IndexPrefix = "full"
)

// Store writes the documents and the index under dir, creating it if needed.
// The quantizer is not included.
func (s *Searcher) Store(dir string) error {
	start := time.Now()
	ctx := context.Background()

	n, err := s.store(dir)

	s.opts.metricsCollector.RecordStore(time.Since(start), err)
	s.opts.logger.LogStore(ctx, "store", dir, n, err)
	return err
}

func (s *Searcher) store(dir string) (int, error) {
	dir, err := persistence.Dir(dir)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := persistence.Save(filepath.Join(dir, DocsFile), s.docs, s.opts.blobOpts...); err != nil {
		return 0, fmt.Errorf("vecsearch: store documents: %w", err)
	}
	if err := s.idx.Store(filepath.Join(dir, IndexDir), IndexPrefix); err != nil {
		return 0, err
	}
	return len(s.docs), nil
}

// Load replaces the contents of s with what Store wrote under dir. Missing
// or unreadable files are logged and yield an empty Searcher; only a failure
// to create dir is returned. A configured keyword index is rebuilt from the
// loaded documents and forgets documents that were only in s.
func (s *Searcher) Load(dir string) error {
	start := time.Now()
	ctx := context.Background()

	n, err := s.load(ctx, dir)

	s.opts.metricsCollector.RecordStore(time.Since(start), err)
	s.opts.logger.LogStore(ctx, "load", dir, n, err)
	return err
}

func (s *Searcher) load(ctx context.Context, dir string) (int, error) {
	dir, err := persistence.Dir(dir)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs := make(map[uint32][]string)
	if err := persistence.Load(filepath.Join(dir, DocsFile), &docs); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.opts.logger.WarnContext(ctx, "documents file missing, starting empty", "dir", dir)
		} else {
			s.opts.logger.ErrorContext(ctx, "documents unreadable, starting empty", "dir", dir, "error", err)
		}
		docs = make(map[uint32][]string)
	}
	if docs == nil {
		docs = make(map[uint32][]string)
	}

	if err := s.idx.Load(filepath.Join(dir, IndexDir), IndexPrefix); err != nil {
		return 0, err
	}
	stale := s.docs
	s.docs = docs

	if s.opts.lexical != nil {
		for id := range stale {
			if _, ok := docs[id]; ok {
				continue
			}
			if err := s.opts.lexical.Delete(id); err != nil {
				s.opts.logger.WarnContext(ctx, "keyword index delete failed", "id", id, "error", err)
			}
		}
		for id, texts := range docs {
			if err := s.opts.lexical.Delete(id); err != nil {
				s.opts.logger.WarnContext(ctx, "keyword index delete failed", "id", id, "error", err)
			}
			for _, text := range texts {
				if err := s.opts.lexical.Add(id, text); err != nil {
					s.opts.logger.WarnContext(ctx, "keyword index add failed", "id", id, "error", err)
				}
			}
		}
	}
	return len(docs), nil
}
