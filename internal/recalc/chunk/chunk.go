// Package chunk runs batches of work as barriers: every item of a chunk is
// dispatched at once and the next chunk starts only after all have returned.
package chunk

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// DefaultSize is the number of items per chunk when none is configured.
const DefaultSize = 100

// ErrPanic wraps a panic raised by an item function.
var ErrPanic = errors.New("chunk item panicked")

// Split divides items into consecutive chunks of at most size items.
func Split[T any](items []T, size int) [][]T {
	if size < 1 {
		size = DefaultSize
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end:end])
	}
	return out
}

// Run calls fn for every item concurrently and waits for all of them. A
// failing or panicking item does not cancel its siblings; the first error is
// returned after the whole chunk has finished.
func Run[T any](ctx context.Context, items []T, fn func(ctx context.Context, item T) error) error {
	var g errgroup.Group
	for _, item := range items {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: %v", ErrPanic, r)
				}
			}()
			return fn(ctx, item)
		})
	}
	return g.Wait()
}
