package utils

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Task is a unit of work run by RunParallel.
type Task func(ctx context.Context) error

// RunParallel runs every task concurrently and returns the first error. The
// context passed to the tasks is cancelled as soon as one of them fails.
func RunParallel(ctx context.Context, tasks ...Task) error {
	return RunParallelLimit(ctx, len(tasks), tasks...)
}

// RunParallelLimit is RunParallel with at most limit tasks in flight.
func RunParallelLimit(ctx context.Context, limit int, tasks ...Task) error {
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, task := range tasks {
		g.Go(func() error { return task(gctx) })
	}
	return g.Wait()
}
