// Package index implements an inverted index over product-quantization codes.
//
// Every (segment, centroid) pair of a quantizer is a term. Adding a vector
// encodes it and records the document id in the posting bitmap of each of
// its terms; the raw vector is kept for exact reranking.
//
// A search asks the quantizer for the clusterTopn nearest centroids of every
// segment, unions their postings per segment and intersects the unions
// across segments. The surviving ids (the recall set) are capped at
// Config.MaxRecall in bitmap iteration order and reranked by the exact
// minimum Euclidean distance to each document's raw vectors.
//
// Term keys are 64-bit hashes (see TermHasher). Two terms that collide share
// a posting, which can only widen the recall set.
//
// An Index is built by a single writer, optionally merged with indexes built
// from the same quantizer, stored, and then loaded for concurrent read-only
// searching.
package index
