// Package lexical defines keyword indexes used to pre-filter vector search.
//
// A keyword index maps document ids to the words of their text chunks and
// answers conjunctive keyword queries with a roaring bitmap, which the
// searcher intersects with the vector recall set before reranking.
//
// Two implementations are provided:
//
//   - memory: per-word roaring bitmaps with whitespace tokenization
//   - bleve: a Bleve index with the standard analyzer, in memory or on disk
package lexical
