// Package vecsearch is an approximate-nearest-neighbor search engine for
// document retrieval.
//
// Text chunks are embedded into vectors, product-quantized into codes and
// indexed by term (segment, centroid) in roaring-bitmap postings. A query
// recalls candidates by intersecting, across segments, the union of the
// postings of its nearest centroids, then reranks them by exact Euclidean
// distance.
//
// # Quick Start
//
//	q, _ := quantization.New(quantization.DefaultConfig())
//	_ = q.Train(sample)
//
//	s := vecsearch.New(q, embed.NewHashEmbedder(768))
//	_ = s.AddText(ctx, 1, "refund policy for damaged goods")
//	hits, _ := s.SearchText(ctx, "damaged goods", 3, 10)
//
//	_ = s.Store("./index")
//
// # Layout
//
// A stored Searcher is a directory holding docs.bin (document id to text
// chunks) and the inverted index under ivt/ with the file prefix "full".
// The quantizer is stored separately (see quantization.Quantizer.Store).
//
// # Keyword Filtering
//
// With WithLexicalIndex, SearchTextFiltered narrows the recall set to
// documents containing every keyword before reranking.
//
// # Concurrency
//
// Build with a single writer, then search concurrently.
package vecsearch
