// Package app assembles tradesim from configuration: strategies, market data,
// the runner, notifiers, metrics and result persistence.
package app

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/newthinker/tradesim/internal/backtest"
	"github.com/newthinker/tradesim/internal/config"
	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/journal"
	"github.com/newthinker/tradesim/internal/marketdata"
	"github.com/newthinker/tradesim/internal/metrics"
	"github.com/newthinker/tradesim/internal/notifier"
	"github.com/newthinker/tradesim/internal/notifier/webhook"
	"github.com/newthinker/tradesim/internal/risk"
	"github.com/newthinker/tradesim/internal/series"
	"github.com/newthinker/tradesim/internal/storage/archive"
	"github.com/newthinker/tradesim/internal/strategy"
	"github.com/newthinker/tradesim/internal/strategy/builtin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// App is the main application orchestrator
type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	strategies *strategy.Registry
	notifiers  *notifier.Registry
	provider   backtest.BarProvider
	runner     *backtest.Runner
	metrics    *metrics.Registry
	journal    *journal.SQLite
	archive    *archive.ResultStore
	sinks      []backtest.ResultSink

	mu   sync.Mutex
	runs int
}

// Option customises App construction.
type Option func(*options)

type options struct {
	notifiers []notifier.Notifier
	provider  backtest.BarProvider
}

// WithNotifier registers an extra notifier alongside the configured ones.
func WithNotifier(n notifier.Notifier) Option {
	return func(o *options) { o.notifiers = append(o.notifiers, n) }
}

// WithProvider replaces the configured market data source.
func WithProvider(p backtest.BarProvider) Option {
	return func(o *options) { o.provider = p }
}

// New validates cfg and builds every component it enables. Close releases
// the journal.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		cfg:        cfg,
		logger:     logger,
		strategies: builtin.Registry(logger),
		notifiers:  notifier.NewRegistry(),
		provider:   o.provider,
	}

	if err := a.setupNotifiers(o.notifiers); err != nil {
		return nil, err
	}

	if a.provider == nil {
		p, err := marketdata.New(cfg.Data)
		if err != nil {
			return nil, err
		}
		a.provider = p
	}

	if cfg.Metrics.Enabled {
		a.metrics = metrics.NewRegistry()
	}

	ledgerCfg, err := cfg.LedgerConfig()
	if err != nil {
		return nil, err
	}
	runnerOpts := []backtest.Option{
		backtest.WithLogger(logger),
		backtest.WithRisk(cfg.RiskConfig()),
	}
	if cfg.PeriodsPerYear > 0 {
		runnerOpts = append(runnerOpts, backtest.WithPeriodsPerYear(cfg.PeriodsPerYear))
	}
	if a.metrics != nil {
		runnerOpts = append(runnerOpts, backtest.WithRecorder(a.metrics))
	}
	if a.runner, err = backtest.NewRunner(ledgerCfg, runnerOpts...); err != nil {
		return nil, err
	}

	if cfg.Journal.Enabled {
		if a.journal, err = journal.Open(ctx, cfg.Journal.DSN); err != nil {
			return nil, fmt.Errorf("opening journal: %w", err)
		}
		a.sinks = append(a.sinks, a.journal)
	}
	if cfg.Storage.Type != "" {
		storage, err := archive.Open(cfg.Storage)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("opening archive: %w", err)
		}
		a.archive = archive.NewResultStore(storage)
		a.sinks = append(a.sinks, a.archive)
	}

	logger.Info("tradesim initialised",
		zap.Strings("strategies", a.strategies.Names()),
		zap.Int("notifiers", len(a.notifiers.GetAll())),
		zap.Bool("journal", a.journal != nil),
		zap.Bool("archive", a.archive != nil),
	)
	return a, nil
}

func (a *App) setupNotifiers(extra []notifier.Notifier) error {
	if err := a.notifiers.Register(notifier.NewLog(a.logger)); err != nil {
		return err
	}
	if wh, ok := a.cfg.Notifiers["webhook"]; ok && wh.Enabled {
		if err := a.notifiers.Register(webhook.New(wh.URL, wh.Headers)); err != nil {
			return err
		}
	}
	for _, n := range extra {
		if err := a.notifiers.Register(n); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the journal, if open.
func (a *App) Close() error {
	if a.journal != nil {
		return a.journal.Close()
	}
	return nil
}

func (a *App) Config() *config.Config         { return a.cfg }
func (a *App) Logger() *zap.Logger            { return a.logger }
func (a *App) Strategies() *strategy.Registry { return a.strategies }
func (a *App) Provider() backtest.BarProvider { return a.provider }
func (a *App) Notifiers() *notifier.Registry  { return a.notifiers }
func (a *App) Sinks() []backtest.ResultSink   { return a.sinks }

// Metrics returns the metrics registry, nil when metrics are disabled.
func (a *App) Metrics() *metrics.Registry { return a.metrics }

// Journal returns the run journal, nil when disabled.
func (a *App) Journal() *journal.SQLite { return a.journal }

// Archive returns the result archive, nil when no storage is configured.
func (a *App) Archive() *archive.ResultStore { return a.archive }

// BacktestRequest describes one run. Params override the strategy's
// configured defaults.
type BacktestRequest struct {
	Strategy string
	Symbol   string
	Start    time.Time
	End      time.Time
	Params   map[string]any
}

// Backtest runs one strategy over the provider's bars, persists the result
// and then delivers its alerts to every registered notifier.
func (a *App) Backtest(ctx context.Context, req BacktestRequest) (*backtest.Result, error) {
	params := a.Params(req.Strategy, req.Params)
	strat, err := a.strategies.New(req.Strategy, strategy.Config{Params: params})
	if err != nil {
		return nil, err
	}

	res, err := a.runner.RunFromProvider(ctx, a.provider, strat, req.Symbol, req.Start, req.End)
	if err != nil {
		return nil, err
	}
	res.Params = params

	err = a.persist(ctx, res)
	a.deliver(ctx, res)
	return res, err
}

// SweepRequest expands Grid over the strategy's configured defaults.
type SweepRequest struct {
	Strategy    string
	Symbol      string
	Start       time.Time
	End         time.Time
	Grid        map[string][]any
	Parallelism int
}

// Sweep runs every grid combination over one load of bars. Results are in
// grid order: keys sorted, last key varying fastest.
// Alerts stay on the results and are not delivered.
func (a *App) Sweep(ctx context.Context, req SweepRequest) ([]*backtest.Result, error) {
	if !a.strategies.Has(req.Strategy) {
		return nil, core.Errorf(core.ErrUnknownStrategy, "%s", req.Strategy)
	}

	keys := make([]string, 0, len(req.Grid))
	for k := range req.Grid {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	combos := backtest.Grid(keys, req.Grid)
	if len(combos) == 0 {
		return nil, core.Errorf(core.ErrValidation, "grid has no combinations")
	}

	bars, err := a.provider.Bars(ctx, req.Symbol, req.Start, req.End)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, core.Errorf(core.ErrNoData, "no bars for %s", req.Symbol)
	}
	s, err := series.Load(bars)
	if err != nil {
		return nil, err
	}

	jobs := make([]backtest.SweepJob, len(combos))
	for i, combo := range combos {
		jobs[i] = backtest.SweepJob{Strategy: req.Strategy, Params: a.Params(req.Strategy, combo), Series: s}
	}

	parallelism := req.Parallelism
	if parallelism <= 0 {
		parallelism = a.cfg.Sweep.Parallelism
	}
	results, err := a.runner.Sweep(ctx, a.strategies, jobs, parallelism)
	if err != nil {
		return nil, err
	}

	var errs []error
	for _, res := range results {
		if err := a.persist(ctx, res); err != nil {
			errs = append(errs, err)
		}
	}
	return results, errors.Join(errs...)
}

// Replay re-runs a recorded run from its trade log over freshly loaded bars
// and persists the reproduction. The journal is preferred as the source; the
// archive is searched when no journal is configured.
func (a *App) Replay(ctx context.Context, runID string) (*backtest.Result, error) {
	rec, err := a.recorded(ctx, runID)
	if err != nil {
		return nil, err
	}

	res, err := a.runner.RunFromProvider(ctx, a.provider, strategy.ReplayFromLog(rec.TradeLog), rec.Symbol, rec.StartDate, rec.EndDate)
	if err != nil {
		return nil, err
	}
	res.Params = map[string]any{"replay_of": runID}

	if !res.FinalEquity().Equal(rec.FinalEquity()) {
		a.logger.Warn("replay diverged from recorded run",
			zap.String("run_id", runID),
			zap.String("recorded", rec.FinalEquity().String()),
			zap.String("replayed", res.FinalEquity().String()),
		)
	}
	return res, a.persist(ctx, res)
}

// recorded loads the header, trade log and final equity of runID.
func (a *App) recorded(ctx context.Context, runID string) (*backtest.Result, error) {
	if a.journal != nil {
		run, err := a.journal.GetRun(ctx, runID)
		if err != nil {
			return nil, err
		}
		log, err := a.journal.TradeLog(ctx, runID)
		if err != nil {
			return nil, err
		}
		curve, err := a.journal.Snapshots(ctx, runID)
		if err != nil {
			return nil, err
		}
		return &backtest.Result{
			RunID:       run.RunID,
			Strategy:    run.Strategy,
			Symbol:      run.Symbol,
			StartDate:   run.StartDate,
			EndDate:     run.EndDate,
			InitialCash: run.InitialCash,
			EquityCurve: curve,
			TradeLog:    log,
		}, nil
	}

	if a.archive == nil {
		return nil, core.Errorf(core.ErrConfigInvalid, "replay needs a journal or an archive")
	}
	keys, err := a.archive.List(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		strat, id, ok := strings.Cut(key, "/")
		if ok && id == runID {
			return a.archive.Load(ctx, strat, id)
		}
	}
	return nil, core.Errorf(core.ErrNotFound, "run %s", runID)
}

// deliver sends the alerts of a finished run in one batch per notifier.
// Delivery failures are logged and never fail the run.
func (a *App) deliver(ctx context.Context, res *backtest.Result) {
	if len(res.Alerts) == 0 {
		return
	}
	for name, err := range a.notifiers.NotifyAllBatch(ctx, res.Alerts) {
		a.logger.Warn("alert delivery failed",
			zap.String("run_id", res.RunID),
			zap.String("notifier", name),
			zap.Int("alerts", len(res.Alerts)),
			zap.Error(err),
		)
	}
}

// Params merges overrides onto the configured defaults for name.
func (a *App) Params(name string, overrides map[string]any) map[string]any {
	merged := make(map[string]any)
	if sc, ok := a.cfg.Strategies[name]; ok {
		maps.Copy(merged, sc.Params)
	}
	maps.Copy(merged, overrides)
	return merged
}

func (a *App) persist(ctx context.Context, res *backtest.Result) error {
	a.mu.Lock()
	a.runs++
	a.mu.Unlock()

	var errs []error
	for _, sink := range a.sinks {
		if err := sink.SaveRun(ctx, res); err != nil {
			a.logger.Error("persisting result failed", zap.String("run_id", res.RunID), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Monitor replays curve through a live risk monitor, in order, calling
// onUpdate for each bar. Alerts go to every registered notifier and are
// returned. name labels the exported risk gauges.
func (a *App) Monitor(ctx context.Context, name string, curve []core.PortfolioSnapshot, onUpdate func(risk.Update)) ([]core.RiskAlert, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	engine, err := risk.NewEngine(a.cfg.RiskConfig(),
		risk.WithLogger(a.logger),
		risk.WithNotifiers(a.notifiers.AlertNotifiers()...),
	)
	if err != nil {
		return nil, err
	}

	mon := risk.NewMonitor(engine, a.logger)
	var alerts []core.RiskAlert
	mon.SetObserver(func(u risk.Update) {
		alerts = append(alerts, u.Alerts...)
		if a.metrics == nil {
			return
		}
		m := u.Metrics
		a.metrics.SetRisk(name, m.Equity, m.Drawdown, m.Volatility, m.Exposure, m.Score)
		for _, al := range u.Alerts {
			a.metrics.RecordAlert(al.Rule, string(al.Severity))
		}
	})

	// Buffer the whole curve so a replay never drops updates.
	updates, cancel := mon.Subscribe(len(curve) + 1)
	defer cancel()

	in := make(chan core.PortfolioSnapshot)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return mon.Run(gctx, in) })
	g.Go(func() error {
		defer close(in)
		for _, snap := range curve {
			select {
			case in <- snap:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	g.Go(func() error {
		for u := range updates {
			if onUpdate != nil {
				onUpdate(u)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return alerts, nil
}

// GetStats returns application statistics
func (a *App) GetStats() map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()

	return map[string]any{
		"runs":       a.runs,
		"strategies": len(a.strategies.Names()),
		"notifiers":  len(a.notifiers.GetAll()),
		"journal":    a.journal != nil,
		"archive":    a.archive != nil,
		"metrics":    a.metrics != nil,
	}
}
