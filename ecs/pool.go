package ecs

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// BatchRunner executes the systems of one batch and waits for all of them to finish
// before returning. The returned error is the first system failure, if any.
type BatchRunner interface {
	runBatch(ctx context.Context, w *World, b batch) error
}

// poolRunner fans a batch out over a bounded worker group. The limit caps concurrent
// system bodies, not batches; the full barrier between batches is the group wait.
type poolRunner struct {
	workers int
}

func newPoolRunner(workers int) *poolRunner {
	if workers < 1 {
		workers = 1
	}
	return &poolRunner{workers: workers}
}

func (p *poolRunner) runBatch(ctx context.Context, w *World, b batch) error {
	if len(b.systems) == 1 {
		return runSystem(ctx, w, b.systems[0])
	}

	// Once a system in this batch fails, members that have not started yet are skipped.
	// Members already running are still waited for; the barrier holds regardless.
	var failed atomic.Bool
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(p.workers)

	for _, sys := range b.systems {
		eg.Go(func() error {
			if failed.Load() {
				return nil
			}
			if err := runSystem(ctx, w, sys); err != nil {
				failed.Store(true)
				return err
			}
			return nil
		})
	}
	return eg.Wait()
}

// serialRunner executes a batch one system at a time in declaration order. Used in
// sequential mode and for single-worker pools where fan-out buys nothing.
type serialRunner struct{}

func (serialRunner) runBatch(ctx context.Context, w *World, b batch) error {
	for _, sys := range b.systems {
		if err := runSystem(ctx, w, sys); err != nil {
			return err
		}
	}
	return nil
}

// runSystem checks out the system's views, runs the body, and releases on every path.
func runSystem(ctx context.Context, w *World, sys *compiledSystem) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	vs, err := acquireViews(w, sys.access)
	if err != nil {
		return systemError(sys.name, err)
	}
	defer vs.release()

	if err := sys.run(vs); err != nil {
		return systemError(sys.name, err)
	}
	return nil
}
