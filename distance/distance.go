// Package distance provides the vector distance kernels used by the
// trainer, the quantizer and the rerank pass.
//
// Kernels are backed by github.com/viterin/vek, which dispatches to
// AVX2 implementations on x86-64 and falls back to pure Go elsewhere.
package distance

import (
	"math"

	"github.com/viterin/vek/vek32"
)

// Euclidean returns the L2 distance between a and b.
// Assumes vectors are the same length (caller's responsibility).
func Euclidean(a, b []float32) float32 {
	if len(a) == 0 {
		return 0
	}
	return vek32.Distance(a, b)
}

// SquaredL2 returns the squared L2 distance between a and b.
// Use it where only the ordering of distances matters.
func SquaredL2(a, b []float32) float32 {
	return SquaredL2Into(make([]float32, len(a)), a, b)
}

// SquaredL2Into is SquaredL2 using buf as scratch space for the difference.
// buf must be at least as long as a.
func SquaredL2Into(buf, a, b []float32) float32 {
	if len(a) == 0 {
		return 0
	}
	d := vek32.Sub_Into(buf[:len(a)], a, b)
	return vek32.Dot(d, d)
}

// Dot returns the dot product of a and b.
func Dot(a, b []float32) float32 {
	if len(a) == 0 {
		return 0
	}
	return vek32.Dot(a, b)
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float32 {
	return float32(math.Sqrt(float64(Dot(v, v))))
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v has zero L2 norm.
func NormalizeL2InPlace(v []float32) bool {
	n := Norm(v)
	if n == 0 {
		return false
	}
	vek32.MulNumber_Inplace(v, 1/n)
	return true
}

// Mean writes the component-wise mean of vectors into dst.
// dst must have the common vector length; it is left untouched when
// vectors is empty.
func Mean(dst []float32, vectors [][]float32) {
	if len(vectors) == 0 {
		return
	}
	clear(dst)
	for _, v := range vectors {
		vek32.Add_Inplace(dst, v)
	}
	vek32.MulNumber_Inplace(dst, 1/float32(len(vectors)))
}
