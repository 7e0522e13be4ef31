package lexical

import (
	"errors"

	"github.com/RoaringBitmap/roaring/v2"
)

// ErrNoKeywords is returned by Match for a query without words.
var ErrNoKeywords = errors.New("lexical: no keywords")

// Index is a keyword index over document text chunks.
type Index interface {
	// Add indexes one more text chunk of document id.
	Add(id uint32, text string) error
	// Delete removes every chunk of document id.
	Delete(id uint32) error
	// Match returns the ids of documents containing every keyword. The
	// chunks of one document count together.
	Match(keywords string) (*roaring.Bitmap, error)
	// Close releases the index.
	Close() error
}
