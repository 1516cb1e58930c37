package pipeline

import (
	"context"
	"runtime"
	"sync"
)

// Task processes item i. Implementations usually write their result into a
// caller-owned slice at index i, which keeps output in input order no matter
// which worker finishes first.
type Task func(ctx context.Context, i int) error

// ForEach runs fn for every index in [0, n) on at most workers goroutines and
// returns the errors in index order. Every index is visited even after ctx is
// cancelled; fn is expected to observe ctx itself and fail fast.
func ForEach(ctx context.Context, n, workers int, fn Task) []error {
	if n <= 0 || fn == nil {
		return nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
		if workers < 1 {
			workers = 1
		}
	}
	if workers > n {
		workers = n
	}

	jobs := make(chan int)
	errs := make([]error, n)
	var wg sync.WaitGroup

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				errs[i] = fn(ctx, i)
			}
		}()
	}

	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	out := make([]error, 0, n)
	for _, err := range errs {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}
