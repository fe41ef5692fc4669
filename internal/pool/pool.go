// Package pool runs independent tasks on a bounded number of goroutines.
package pool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultWidth is the fan-out used when callers pass width <= 0.
const DefaultWidth = 8

// Collect runs fn for every item with at most width tasks in flight and
// returns the results in completion order. fn must report failure in its
// result value; Collect never aborts siblings. Items not yet started when
// ctx is done are skipped, so the result may be shorter than items.
func Collect[T, R any](ctx context.Context, width int, items []T, fn func(context.Context, T) R) []R {
	if len(items) == 0 {
		return nil
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if width > len(items) {
		width = len(items)
	}

	results := make(chan R, len(items))
	// The group context is never cancelled by a task: tasks do not return errors.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(width)

	for _, item := range items {
		if gctx.Err() != nil {
			break
		}
		item := item
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			results <- fn(gctx, item)
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	out := make([]R, 0, len(items))
	for r := range results {
		out = append(out, r)
	}
	return out
}
