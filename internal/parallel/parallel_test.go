package parallel

import (
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkers(t *testing.T) {
	assert.Equal(t, runtime.GOMAXPROCS(0), Workers(0))
	assert.Equal(t, runtime.GOMAXPROCS(0), Workers(-3))
	assert.Equal(t, 7, Workers(7))
}

func TestFor_CoversEveryIndexOnce(t *testing.T) {
	for _, n := range []int{0, 1, 5, 16, 1001} {
		for _, workers := range []int{1, 3, 8} {
			hits := make([]int, n)
			For(workers, n, func(_, lo, hi int) {
				for i := lo; i < hi; i++ {
					hits[i]++
				}
			})
			for i, h := range hits {
				require.Equalf(t, 1, h, "n=%d workers=%d index=%d", n, workers, i)
			}
		}
	}
}

func TestFor_PerChunkOutputs(t *testing.T) {
	const n = 100
	chunks := Chunks(4, n)
	sums := make([]int, chunks)
	For(4, n, func(c, lo, hi int) {
		for i := lo; i < hi; i++ {
			sums[c] += i
		}
	})

	total := 0
	for _, s := range sums {
		total += s
	}
	assert.Equal(t, n*(n-1)/2, total)
}

func TestMap(t *testing.T) {
	out, err := Map(3, 10, func(i int) (int, error) { return i * i, nil })
	require.NoError(t, err)
	for i, v := range out {
		assert.Equal(t, i*i, v)
	}

	boom := errors.New("boom")
	_, err = Map(3, 10, func(i int) (int, error) {
		if i == 4 {
			return 0, boom
		}
		return i, nil
	})
	assert.ErrorIs(t, err, boom)

	strs, err := Map(2, 0, func(int) (string, error) { return "", nil })
	require.NoError(t, err)
	assert.Empty(t, strs)
}
