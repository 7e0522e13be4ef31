// Package kmeans implements the clustering trainer behind product quantization.
//
// Seeding picks centroids that are far from every centroid chosen so far
// while penalizing candidates whose distances to those centroids are very
// uneven, which keeps a single outlier from claiming a centroid. Refinement
// is Lloyd iteration with a parallel assignment step and a convergence test
// on the sum of squared errors.
package kmeans
