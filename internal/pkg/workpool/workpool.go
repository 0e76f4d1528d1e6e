package workpool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

const DefaultLimit = 10

// Pool bounds how many tasks run at once. Tasks beyond the limit wait for a slot.
type Pool struct {
	limit int
}

func New(limit int) *Pool {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Pool{limit: limit}
}

func (p *Pool) Limit() int {
	if p == nil || p.limit <= 0 {
		return DefaultLimit
	}
	return p.limit
}

// Each runs fn once per item and returns every task's error at the item's index.
// A failing task never cancels its siblings; once ctx is done, tasks that have not started
// report ctx.Err() without running. Each blocks until every task has finished.
func Each[T any](ctx context.Context, p *Pool, items []T, fn func(ctx context.Context, i int, item T) error) []error {
	errs := make([]error, len(items))
	if len(items) == 0 {
		return errs
	}
	var g errgroup.Group
	g.SetLimit(p.Limit())
	for i := range items {
		i := i
		item := items[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			errs[i] = fn(ctx, i, item)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// Map is Each with one result slot per item. Failed items leave the zero value in place.
func Map[T, R any](ctx context.Context, p *Pool, items []T, fn func(ctx context.Context, i int, item T) (R, error)) ([]R, []error) {
	out := make([]R, len(items))
	errs := Each(ctx, p, items, func(ctx context.Context, i int, item T) error {
		r, err := fn(ctx, i, item)
		if err != nil {
			return err
		}
		out[i] = r
		return nil
	})
	return out, errs
}
