package ecs

import (
	"context"

	"github.com/rs/zerolog"
)

// scheduler executes a workload's precomputed batch plan. Batches run strictly in order
// with a full barrier between them; within a batch the configured runner decides fan-out.
type scheduler struct {
	runner BatchRunner
	log    zerolog.Logger
}

func newScheduler(cfg Config, log zerolog.Logger) *scheduler {
	var runner BatchRunner
	if cfg.Sequential || cfg.Workers <= 1 {
		runner = serialRunner{}
	} else {
		runner = newPoolRunner(cfg.Workers)
	}
	return &scheduler{runner: runner, log: log}
}

// runWorkload executes every batch in plan order. The first failing batch aborts the run;
// batches after it do not start. Within the failing batch, already running systems finish
// before the error is returned.
func (s *scheduler) runWorkload(ctx context.Context, w *World, wl *workload) error {
	for i, b := range wl.batches {
		if err := s.runner.runBatch(ctx, w, b); err != nil {
			s.log.Debug().
				Str("workload", wl.name).
				Int("batch", i).
				Err(err).
				Msg("workload aborted")
			return err
		}
	}
	return nil
}
