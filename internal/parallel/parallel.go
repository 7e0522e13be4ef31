// Package parallel provides fork-join helpers for data-parallel numeric work.
//
// Every helper writes into per-task output slots and returns only after all
// tasks have finished, so callers reduce results on a single goroutine.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Workers normalizes a worker count: non-positive values mean GOMAXPROCS.
func Workers(n int) int {
	if n <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return n
}

// Chunks returns how many contiguous chunks For splits n items into.
func Chunks(workers, n int) int {
	if n <= 0 {
		return 0
	}
	return min(Workers(workers), n)
}

// For splits [0, n) into Chunks(workers, n) contiguous ranges and calls fn
// for each range concurrently. chunk is the range's position, usable as an
// index into a per-chunk output slice.
func For(workers, n int, fn func(chunk, lo, hi int)) {
	chunks := Chunks(workers, n)
	if chunks == 0 {
		return
	}
	if chunks == 1 {
		fn(0, 0, n)
		return
	}

	size := (n + chunks - 1) / chunks
	var g errgroup.Group
	for c := 0; c < chunks; c++ {
		lo := c * size
		hi := min(lo+size, n)
		if lo >= hi {
			continue
		}
		g.Go(func() error {
			fn(c, lo, hi)
			return nil
		})
	}
	_ = g.Wait()
}

// Map calls fn for every i in [0, n) with at most workers concurrent calls
// and returns the outputs in input order. The first error wins.
func Map[R any](workers, n int, fn func(i int) (R, error)) ([]R, error) {
	out := make([]R, n)
	if n == 0 {
		return out, nil
	}

	var g errgroup.Group
	g.SetLimit(Workers(workers))
	for i := 0; i < n; i++ {
		g.Go(func() error {
			r, err := fn(i)
			if err != nil {
				return err
			}
			out[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
