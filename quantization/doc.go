// Package quantization implements product quantization.
//
// A vector of dimension D is split into Segments contiguous sub-vectors of
// length D/Segments. Each segment gets its own k-means codebook, so a vector
// is represented by one centroid id per segment:
//
//	q, err := quantization.New(quantization.Config{
//	    Segments:     16,
//	    ClusterCount: 16,
//	    Dimension:    768,
//	})
//	err = q.Train(vectors)
//	code, err := q.Encode(vec)          // []int, one id per segment
//	nn, err := q.Search(vec, 3)         // 3 nearest centroids per segment
//
// Models are persisted as two artifacts: the nested centroid lists and the
// four scalar parameters [segments, clusterCount, maxIterations, dimension].
package quantization
