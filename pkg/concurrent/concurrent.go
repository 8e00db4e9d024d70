package concurrent

import (
	"context"

	"github.com/csicar/tables/pkg/sequence"
	"golang.org/x/sync/errgroup"
)

// Concurrent runs action for each element of the iterator in its own
// goroutine, at most limit at a time (no limit when limit <= 0). The context
// passed to action is cancelled as soon as one action fails; the first error
// is returned after all goroutines finished.
func Concurrent[T any](ctx context.Context, i *sequence.Iterator[T], limit int, action func(context.Context, T) error) error {
	errGroup, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		errGroup.SetLimit(limit)
	}
	next, stop := i.Pull()
	defer stop()

	for {
		value, valid := next()
		if !valid {
			break
		}

		errGroup.Go(func() error {
			return action(ctx, value)
		})
	}

	return errGroup.Wait()
}

// Map applies fn to every element concurrently and returns the results in
// input order.
func Map[T any, R any](ctx context.Context, i *sequence.Iterator[T], limit int, fn func(context.Context, T) (R, error)) ([]R, error) {
	in := i.Collect()
	out := make([]R, len(in))
	err := Concurrent(ctx, sequence.From(indices(len(in))), limit, func(ctx context.Context, idx int) error {
		r, err := fn(ctx, in[idx])
		if err != nil {
			return err
		}
		out[idx] = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func indices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
