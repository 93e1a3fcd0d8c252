package async

import (
	"context"
	"log"
	"runtime/debug"
	"sync"
	"time"
)

// SafeGo executes a function in a goroutine with context cancellation,
// panic recovery, timeout enforcement, and error logging. Use this instead
// of a bare `go func()` for fire-and-forget work.
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				log.Printf("[SafeGo] PANIC in %s: %v\nStack trace:\n%s",
					taskName, r, string(debug.Stack()))
			}
		}()

		if err := fn(ctx); err != nil {
			log.Printf("[SafeGo] Error in %s: %v", taskName, err)
		}
	}()
}

// Batch processes a slice of items concurrently with a bounded number of
// workers, collecting every error encountered.
func Batch[T any](ctx context.Context, items []T, workers int, timeout time.Duration,
	fn func(context.Context, T) error) []error {

	if workers <= 0 {
		workers = 1
	}

	sem := make(chan struct{}, workers)
	var mu sync.Mutex
	var errs []error
	var wg sync.WaitGroup

	for _, item := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(item T) {
			defer wg.Done()
			defer func() { <-sem }()

			tctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			defer func() {
				if r := recover(); r != nil {
					log.Printf("[Batch] PANIC: %v\nStack trace:\n%s", r, string(debug.Stack()))
				}
			}()

			if err := fn(tctx, item); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(item)
	}

	wg.Wait()
	return errs
}
