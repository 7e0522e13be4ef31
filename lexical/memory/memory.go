// Package memory provides an in-memory keyword index backed by one roaring
// bitmap per word.
package memory

import (
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/vecsearch/lexical"
)

// Index is an in-memory keyword index. Words are lowercased and split on
// whitespace. Matching is per document: keywords may come from different
// chunks of the same document.
type Index struct {
	mu    sync.RWMutex
	words map[string]*roaring.Bitmap
	docs  map[uint32]map[string]struct{}
}

var _ lexical.Index = (*Index)(nil)

// New creates an empty index.
func New() *Index {
	return &Index{
		words: make(map[string]*roaring.Bitmap),
		docs:  make(map[uint32]map[string]struct{}),
	}
}

func tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// Add implements lexical.Index.
func (x *Index) Add(id uint32, text string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	seen, ok := x.docs[id]
	if !ok {
		seen = make(map[string]struct{})
		x.docs[id] = seen
	}
	for _, w := range tokenize(text) {
		p, ok := x.words[w]
		if !ok {
			p = roaring.New()
			x.words[w] = p
		}
		p.Add(id)
		seen[w] = struct{}{}
	}
	return nil
}

// Delete implements lexical.Index.
func (x *Index) Delete(id uint32) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	for w := range x.docs[id] {
		p := x.words[w]
		p.Remove(id)
		if p.IsEmpty() {
			delete(x.words, w)
		}
	}
	delete(x.docs, id)
	return nil
}

// Match implements lexical.Index.
func (x *Index) Match(keywords string) (*roaring.Bitmap, error) {
	words := tokenize(keywords)
	if len(words) == 0 {
		return nil, lexical.ErrNoKeywords
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	var out *roaring.Bitmap
	for _, w := range words {
		p, ok := x.words[w]
		if !ok {
			return roaring.New(), nil
		}
		if out == nil {
			out = p.Clone()
		} else {
			out.And(p)
		}
	}
	return out, nil
}

// Len returns the number of indexed documents.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()

	return len(x.docs)
}

// Close implements lexical.Index.
func (x *Index) Close() error { return nil }
