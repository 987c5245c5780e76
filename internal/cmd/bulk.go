package cmd

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// DefaultConcurrency is the default number of concurrent workers
const DefaultConcurrency = 5

// BulkResult is the outcome of one operation in a bulk run.
type BulkResult[T any] struct {
	ID    int
	Data  T
	Error error
	// Skipped is set when the run was canceled before the operation started.
	Skipped bool
}

// OK reports whether the operation ran and succeeded.
func (r BulkResult[T]) OK() bool {
	return !r.Skipped && r.Error == nil
}

// runBulkOperation runs operation for every id with bounded parallelism.
// Results are returned in the order of ids; individual failures never stop
// the others.
func runBulkOperation[T any](
	ctx context.Context,
	ids []int,
	concurrency int64,
	progress bool,
	errOut io.Writer,
	operation func(ctx context.Context, id int) (T, error),
) []BulkResult[T] {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if errOut == nil {
		errOut = io.Discard
	}

	sem := semaphore.NewWeighted(concurrency)
	results := make([]BulkResult[T], len(ids))
	total := len(ids)
	var done int64
	var progressMu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		i, id := i, id
		results[i] = BulkResult[T]{ID: id, Skipped: true}
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return nil
			}
			defer sem.Release(1)
			if ctx.Err() != nil {
				return nil
			}

			data, err := operation(ctx, id)
			// Each goroutine owns results[i].
			results[i] = BulkResult[T]{ID: id, Data: data, Error: err}

			if progress && total > 0 {
				current := atomic.AddInt64(&done, 1)
				progressMu.Lock()
				_, _ = fmt.Fprintf(errOut, "\rProcessed %d/%d", current, total)
				progressMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if progress && total > 0 {
		_, _ = fmt.Fprintf(errOut, "\rProcessed %d/%d\n", atomic.LoadInt64(&done), total)
	}
	return results
}

// rateLimited wraps operation so that calls start no faster than perSecond.
// A non-positive rate leaves operation unchanged.
func rateLimited[T any](perSecond float64, operation func(ctx context.Context, id int) (T, error)) func(ctx context.Context, id int) (T, error) {
	if perSecond <= 0 {
		return operation
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), 1)
	return func(ctx context.Context, id int) (T, error) {
		if err := limiter.Wait(ctx); err != nil {
			var zero T
			return zero, err
		}
		return operation(ctx, id)
	}
}

// countResults returns success and failure counts; skipped operations count as failures.
func countResults[T any](results []BulkResult[T]) (success, failure int) {
	for _, r := range results {
		if r.OK() {
			success++
		} else {
			failure++
		}
	}
	return
}
