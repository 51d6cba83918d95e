// Package api implements the JSON handlers of the HTTP API.
package api

import (
	"context"
	"time"

	"github.com/newthinker/tradesim/internal/api/job"
	"github.com/newthinker/tradesim/internal/app"
	"github.com/newthinker/tradesim/internal/backtest"
	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/strategy"
	"go.uber.org/zap"
)

const defaultJobTimeout = 5 * time.Minute

// JobGauge tracks the number of active jobs per type.
type JobGauge interface {
	SetJobsActive(jobType string, count int)
}

// Backtester runs backtests with the configured strategy defaults, persists
// the results and delivers their alerts. *app.App implements it.
type Backtester interface {
	Params(strategy string, overrides map[string]any) map[string]any
	Backtest(ctx context.Context, req app.BacktestRequest) (*backtest.Result, error)
	Sweep(ctx context.Context, req app.SweepRequest) ([]*backtest.Result, error)
}

// Deps are the collaborators shared by the job handlers.
type Deps struct {
	Jobs       *job.Store
	Backtester Backtester
	Strategies *strategy.Registry
	Gauge      JobGauge
	Logger     *zap.Logger
	// Timeout bounds each job; zero means five minutes.
	Timeout time.Duration
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Timeout <= 0 {
		d.Timeout = defaultJobTimeout
	}
	return d
}

// startJob creates a job and runs fn in the background, recording its
// outcome on the job.
func (d Deps) startJob(jobType string, fn func(ctx context.Context) (any, error)) job.Job {
	j := d.Jobs.Create(jobType)
	d.updateGauge(jobType)

	go func() {
		log := d.Logger.With(zap.String("job_id", j.ID), zap.String("type", jobType))
		d.Jobs.Update(j.ID, func(j *job.Job) { j.Status = job.StatusRunning })

		ctx, cancel := context.WithTimeout(context.Background(), d.Timeout)
		defer cancel()

		result, err := fn(ctx)
		if err != nil {
			log.Warn("job failed", zap.Error(err))
			d.Jobs.Update(j.ID, func(j *job.Job) {
				j.Status = job.StatusFailed
				j.Error = core.AsError(err, core.ErrStrategyFailed)
			})
		} else {
			log.Info("job completed")
			d.Jobs.Update(j.ID, func(j *job.Job) {
				j.Status = job.StatusComplete
				j.Progress = 100
				j.Result = result
			})
		}
		d.updateGauge(jobType)
	}()

	return j
}

func (d Deps) updateGauge(jobType string) {
	if d.Gauge != nil {
		d.Gauge.SetJobsActive(jobType, d.Jobs.Active(jobType))
	}
}

// validate builds name with its merged parameters so unknown strategies and
// bad values fail the request instead of the job.
func (d Deps) validate(name string, overrides map[string]any) error {
	_, err := d.Strategies.New(name, strategy.Config{Params: d.Backtester.Params(name, overrides)})
	return err
}

// parseDate parses an optional YYYY-MM-DD bound.
func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, core.Errorf(core.ErrValidation, "%s: expected YYYY-MM-DD, got %q", field, s)
	}
	return t, nil
}

// endOfDay makes a date-only end bound inclusive of intraday bars.
func endOfDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.Add(24*time.Hour - time.Nanosecond)
}
