// Package backtest replays a bar series through a strategy against a
// simulated ledger and collects the equity curve, trade log and statistics.
package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/tradesim/internal/analytics"
	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/ledger"
	"github.com/newthinker/tradesim/internal/risk"
	"github.com/newthinker/tradesim/internal/series"
	"github.com/newthinker/tradesim/internal/strategy"
	"go.uber.org/zap"
)

// Runner runs strategy backtests. A Runner holds only configuration, so one
// Runner may serve concurrent runs; every run gets its own ledger and risk engine.
type Runner struct {
	ledgerCfg      ledger.Config
	riskCfg        risk.Config
	periodsPerYear float64
	logger         *zap.Logger
	recorder       Recorder
	newRunID       func() string
	now            func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// WithRisk sets the risk configuration. Alerts are collected on the Result;
// the runner never delivers them, so a slow channel cannot stall a run.
func WithRisk(cfg risk.Config) Option {
	return func(r *Runner) { r.riskCfg = cfg }
}

// WithPeriodsPerYear sets the annualization factor for statistics.
func WithPeriodsPerYear(n float64) Option {
	return func(r *Runner) { r.periodsPerYear = n }
}

// WithRunIDs overrides run ID generation.
func WithRunIDs(fn func() string) Option {
	return func(r *Runner) { r.newRunID = fn }
}

// WithClock overrides the wall clock used for run durations.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner validates configuration and creates a runner.
func NewRunner(ledgerCfg ledger.Config, opts ...Option) (*Runner, error) {
	r := &Runner{
		ledgerCfg:      ledgerCfg,
		riskCfg:        risk.DefaultConfig(),
		periodsPerYear: analytics.DefaultPeriodsPerYear,
		logger:         zap.NewNop(),
		recorder:       nopRecorder{},
		newRunID:       uuid.NewString,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := ledgerCfg.Validate(); err != nil {
		return nil, err
	}
	if err := r.riskCfg.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Run executes strat over every bar of s in order. At bar t the strategy sees
// only bars up to and including t. Rejected intents are recorded and the run
// continues; a strategy error or cancellation aborts the run with no result.
func (r *Runner) Run(ctx context.Context, strat strategy.Strategy, s *series.Series) (*Result, error) {
	if s == nil || s.Len() == 0 {
		return nil, core.WrapError(core.ErrValidation, core.ErrNoData)
	}

	start := r.now()
	name := strat.Name()
	log := r.logger.With(
		zap.String("strategy", name),
		zap.String("symbol", s.Symbol()),
	)

	res, err := r.simulate(ctx, strat, s, log)
	duration := r.now().Sub(start)
	if err != nil {
		r.recorder.RecordBacktest(name, "failed", duration.Seconds())
		log.Warn("backtest failed", zap.Error(err))
		return nil, err
	}

	res.Duration = duration
	r.recorder.RecordBacktest(name, "completed", duration.Seconds())
	log.Info("backtest completed",
		zap.String("run_id", res.RunID),
		zap.Int("bars", s.Len()),
		zap.Int("fills", len(res.Fills)),
		zap.Int("rejections", len(res.Rejections)),
		zap.Int("alerts", len(res.Alerts)),
		zap.String("final_equity", res.FinalEquity().String()),
		zap.Duration("duration", duration),
	)
	return res, nil
}

func (r *Runner) simulate(ctx context.Context, strat strategy.Strategy, s *series.Series, log *zap.Logger) (*Result, error) {
	l, err := ledger.New(r.ledgerCfg)
	if err != nil {
		return nil, err
	}
	engine, err := risk.NewEngine(r.riskCfg, risk.WithLogger(log))
	if err != nil {
		return nil, err
	}

	name := strat.Name()
	lookback := max(1, strat.Lookback())

	curve := make([]core.PortfolioSnapshot, 0, s.Len())
	riskMetrics := make([]risk.Metrics, 0, s.Len())
	var alerts []core.RiskAlert

	for i, bar := range s.All() {
		// Cancellation is honoured between bars only.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		window := s.Trailing(i, lookback)
		intents, err := strat.Decide(window, l.Snapshot(bar))
		if err != nil {
			return nil, core.WrapError(core.ErrStrategyFailed,
				fmt.Errorf("%s at bar %d (%s): %w", name, i, bar.Time.Format(time.RFC3339), err))
		}

		for _, intent := range intents {
			fill, err := l.Execute(intent, bar)
			if err != nil {
				code := rejectionCode(err)
				r.recorder.RecordRejection(name, code)
				log.Debug("intent rejected",
					zap.Time("time", bar.Time),
					zap.String("side", string(intent.Side)),
					zap.String("quantity", intent.Quantity.String()),
					zap.String("code", code),
					zap.Error(err),
				)
				continue
			}
			r.recorder.RecordFill(name, string(fill.Side))
		}

		snap := l.Snapshot(bar)
		curve = append(curve, snap)

		m, fired := engine.Update(ctx, snap)
		riskMetrics = append(riskMetrics, m)
		for _, a := range fired {
			r.recorder.RecordAlert(a.Rule, string(a.Severity))
		}
		alerts = append(alerts, fired...)

		r.recorder.RecordBar(name)
	}

	fills := l.Fills()
	return &Result{
		RunID:       r.newRunID(),
		Strategy:    name,
		Symbol:      s.Symbol(),
		StartDate:   s.First().Time,
		EndDate:     s.Last().Time,
		InitialCash: r.ledgerCfg.InitialCash,
		EquityCurve: curve,
		TradeLog:    l.Log(),
		Fills:       fills,
		Rejections:  l.Rejections(),
		Risk:        riskMetrics,
		Alerts:      alerts,
		Summary:     analytics.Summarize(r.ledgerCfg.InitialCash, curve, fills, r.periodsPerYear),
	}, nil
}

// RunFromProvider loads bars for symbol in [start, end] from provider,
// validates them into a series, then runs strat over it.
func (r *Runner) RunFromProvider(ctx context.Context, provider BarProvider, strat strategy.Strategy, symbol string, start, end time.Time) (*Result, error) {
	bars, err := provider.Bars(ctx, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("loading bars for %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, core.Errorf(core.ErrNoData, "no bars for %s between %s and %s",
			symbol, start.Format(time.DateOnly), end.Format(time.DateOnly))
	}

	s, err := series.Load(bars)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, strat, s)
}

func rejectionCode(err error) string {
	return core.CodeOf(err, "REJECTED")
}
