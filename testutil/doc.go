// Package testutil provides helpers for tests across the module.
//
// It is intended for use in tests only: seeded vector generators, an exact
// search over per-document vector lists to compare against, and a recall
// measure.
//
//	rng := testutil.NewRNG(4711)
//	vecs, labels := rng.ClusteredVectors(1000, 32, 8, 0.05)
//	truth := testutil.BruteForceSearch(docs, query, 10)
package testutil
