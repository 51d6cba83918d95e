package backtest

import (
	"context"
	"fmt"
	"runtime"

	"github.com/newthinker/tradesim/internal/series"
	"github.com/newthinker/tradesim/internal/strategy"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SweepJob is one parameterisation of a strategy over a series.
type SweepJob struct {
	Strategy string
	Params   map[string]any
	Series   *series.Series
}

// Sweep runs jobs concurrently, each with a fresh strategy instance from
// registry. Results are returned in job order. The first failing job cancels
// the rest and its error is returned.
func (r *Runner) Sweep(ctx context.Context, registry *strategy.Registry, jobs []SweepJob, parallelism int) ([]*Result, error) {
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}

	results := make([]*Result, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for i, job := range jobs {
		g.Go(func() error {
			strat, err := registry.New(job.Strategy, strategy.Config{Params: job.Params})
			if err != nil {
				return fmt.Errorf("sweep job %d: %w", i, err)
			}
			res, err := r.Run(gctx, strat, job.Series)
			if err != nil {
				return fmt.Errorf("sweep job %d: %w", i, err)
			}
			res.Params = job.Params
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	r.logger.Info("sweep completed", zap.Int("jobs", len(jobs)), zap.Int("parallelism", parallelism))
	return results, nil
}

// Grid expands a parameter grid into every combination, in deterministic
// order with the last key varying fastest. Keys are iterated in the order given.
func Grid(keys []string, values map[string][]any) []map[string]any {
	combos := []map[string]any{{}}
	for _, key := range keys {
		var next []map[string]any
		for _, base := range combos {
			for _, v := range values[key] {
				c := make(map[string]any, len(base)+1)
				for k, bv := range base {
					c[k] = bv
				}
				c[key] = v
				next = append(next, c)
			}
		}
		combos = next
	}
	return combos
}
