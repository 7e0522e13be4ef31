package distance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDot(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Simple", []float32{1, 2, 3}, []float32{4, 5, 6}, 32},
		{"Zero", []float32{0, 0, 0}, []float32{0, 0, 0}, 0},
		{"Mixed", []float32{1, -1, 2}, []float32{1, 1, -2}, -4},
		{"Empty", []float32{}, []float32{}, 0},
		{"Single", []float32{2}, []float32{3}, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Dot(tt.a, tt.b), 1e-5)
		})
	}
}

func TestEuclidean(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Pythagoras", []float32{0, 0}, []float32{3, 4}, 5},
		{"Identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"Mixed", []float32{1, -1}, []float32{-1, 1}, 2.828427},
		{"Empty", []float32{}, []float32{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Euclidean(tt.a, tt.b), 1e-5)
			assert.InDelta(t, tt.expected*tt.expected, SquaredL2(tt.a, tt.b), 1e-4)
		})
	}
}

func TestNormalizeL2InPlace(t *testing.T) {
	v := []float32{3, 4}
	require.True(t, NormalizeL2InPlace(v))
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	assert.False(t, NormalizeL2InPlace([]float32{0, 0}))
}

func TestMean(t *testing.T) {
	dst := []float32{9, 9}
	Mean(dst, [][]float32{{1, 2}, {3, 4}})
	assert.InDeltaSlice(t, []float32{2, 3}, dst, 1e-6)

	Mean(dst, nil)
	assert.InDeltaSlice(t, []float32{2, 3}, dst, 1e-6, "empty input leaves dst untouched")
}

func TestSquaredL2Into(t *testing.T) {
	buf := make([]float32, 4)
	assert.InDelta(t, 25, SquaredL2Into(buf, []float32{0, 0}, []float32{3, 4}), 1e-5)
	assert.InDelta(t, 2, SquaredL2Into(buf, []float32{1, 1, 1}, []float32{2, 1, 0}), 1e-5)
	assert.Zero(t, SquaredL2Into(buf, nil, nil))
}
