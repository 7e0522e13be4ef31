// Package bleve provides a keyword index backed by Bleve.
package bleve

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/google/uuid"
	"github.com/hupe1980/vecsearch/lexical"
)

const (
	docField  = "doc"
	textField = "text"
	pageSize  = 1000
)

// Index stores every text chunk as its own Bleve document keyed
// "<id>/<uuid>", with the owning id in a keyword field.
type Index struct {
	index bleve.Index
}

var _ lexical.Index = (*Index)(nil)

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	text.Store = false
	docMapping.AddFieldMappingsAt(textField, text)
	docMapping.AddFieldMappingsAt(docField, bleve.NewKeywordFieldMapping())

	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping
	return im
}

// New opens the index at path, creating it if needed. An empty path keeps
// the index in memory.
func New(path string) (*Index, error) {
	if path == "" {
		idx, err := bleve.NewMemOnly(newMapping())
		if err != nil {
			return nil, fmt.Errorf("bleve: create in-memory index: %w", err)
		}
		return &Index{index: idx}, nil
	}

	if _, err := os.Stat(path); err == nil {
		idx, err := bleve.Open(path)
		if err != nil {
			return nil, fmt.Errorf("bleve: open %s: %w", path, err)
		}
		return &Index{index: idx}, nil
	}

	idx, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("bleve: create %s: %w", path, err)
	}
	return &Index{index: idx}, nil
}

// Add implements lexical.Index.
func (x *Index) Add(id uint32, text string) error {
	doc := strconv.FormatUint(uint64(id), 10)
	return x.index.Index(doc+"/"+uuid.NewString(), map[string]any{
		docField:  doc,
		textField: text,
	})
}

// Delete implements lexical.Index.
func (x *Index) Delete(id uint32) error {
	q := bleve.NewTermQuery(strconv.FormatUint(uint64(id), 10))
	q.SetField(docField)

	for {
		req := bleve.NewSearchRequestOptions(q, pageSize, 0, false)
		res, err := x.index.Search(req)
		if err != nil {
			return fmt.Errorf("bleve: find chunks of %d: %w", id, err)
		}
		if len(res.Hits) == 0 {
			return nil
		}

		batch := x.index.NewBatch()
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
		}
		if err := x.index.Batch(batch); err != nil {
			return fmt.Errorf("bleve: delete chunks of %d: %w", id, err)
		}
	}
}

// Match implements lexical.Index. Each keyword is analyzed like the indexed
// text; a keyword the analyzer drops entirely (a stop word) matches nothing.
func (x *Index) Match(keywords string) (*roaring.Bitmap, error) {
	words := strings.Fields(keywords)
	if len(words) == 0 {
		return nil, lexical.ErrNoKeywords
	}

	var out *roaring.Bitmap
	for _, w := range words {
		q := bleve.NewMatchQuery(w)
		q.SetField(textField)

		ids, err := x.collect(q)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = ids
		} else {
			out.And(ids)
		}
		if out.IsEmpty() {
			break
		}
	}
	return out, nil
}

// collect pages through all hits of q and returns their document ids.
func (x *Index) collect(q query.Query) (*roaring.Bitmap, error) {
	out := roaring.New()
	for from := 0; ; from += pageSize {
		req := bleve.NewSearchRequestOptions(q, pageSize, from, false)
		res, err := x.index.Search(req)
		if err != nil {
			return nil, fmt.Errorf("bleve: search: %w", err)
		}
		for _, hit := range res.Hits {
			id, err := docID(hit.ID)
			if err != nil {
				return nil, err
			}
			out.Add(id)
		}
		if len(res.Hits) < pageSize || uint64(from+pageSize) >= res.Total {
			return out, nil
		}
	}
}

func docID(key string) (uint32, error) {
	prefix, _, ok := strings.Cut(key, "/")
	if !ok {
		return 0, errors.New("bleve: malformed chunk key " + key)
	}
	id, err := strconv.ParseUint(prefix, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("bleve: malformed chunk key %s: %w", key, err)
	}
	return uint32(id), nil
}

// Len returns the number of indexed chunks.
func (x *Index) Len() (uint64, error) {
	return x.index.DocCount()
}

// Close implements lexical.Index.
func (x *Index) Close() error {
	return x.index.Close()
}
