package concurrent

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ForEach runs action for each element of items in its own goroutine, at most
// limit at a time (limit <= 0 means unbounded). It waits for all goroutines
// and returns the first error encountered. The context handed to action is
// cancelled as soon as one call fails.
func ForEach[T any](ctx context.Context, items []T, limit int, action func(context.Context, T) error) error {
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, item := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return action(ctx, item)
		})
	}
	return g.Wait()
}

// ParallelMust runs action for each element of items in a separate goroutine
// and waits for all of them.
func ParallelMust[T any](items []T, action func(T)) {
	var wg sync.WaitGroup
	wg.Add(len(items))
	for _, item := range items {
		go func(v T) {
			defer wg.Done()
			action(v)
		}(item)
	}
	wg.Wait()
}

// Chunks splits items into consecutive sub-slices of at most size elements.
// The sub-slices share the backing array of items.
func Chunks[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) <= size {
		if len(items) == 0 {
			return nil
		}
		return [][]T{items}
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for idx := 0; idx < len(items); idx += size {
		end := idx + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[idx:end])
	}
	return out
}
