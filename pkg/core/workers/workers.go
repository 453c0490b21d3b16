// Package workers runs index-partitioned work on a bounded pool of goroutines.
//
// Every helper hands each worker a disjoint [lo, hi) range, so callers can
// write results into preallocated slots without synchronization.
package workers

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Resolve turns a configured worker count into an effective one. Zero or
// negative means one worker per CPU.
func Resolve(n int) int {
	if n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

// ForEachRange splits [0, n) into contiguous chunks and runs fn on each chunk
// with at most `workers` goroutines in flight. The first error wins.
func ForEachRange(workers, n int, fn func(lo, hi int) error) error {
	if n <= 0 {
		return nil
	}
	workers = min(Resolve(workers), n)

	chunk := (n + workers - 1) / workers
	var g errgroup.Group
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error {
			return fn(lo, hi)
		})
	}
	return g.Wait()
}

// ForEach is ForEachRange with a per-index callback.
func ForEach(workers, n int, fn func(i int) error) error {
	return ForEachRange(workers, n, func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	})
}
