package risk

import (
	"context"
	"math"
	"time"

	"github.com/newthinker/tradesim/internal/alert"
	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/indicator"
	"go.uber.org/zap"
)

// Metrics is the risk state after one snapshot.
type Metrics struct {
	Time       time.Time `json:"time"`
	Equity     float64   `json:"equity"`
	Peak       float64   `json:"peak"`
	Drawdown   float64   `json:"drawdown"`
	Volatility float64   `json:"volatility"`
	Exposure   float64   `json:"exposure"`
	Score      float64   `json:"score"`
}

// Values returns the metrics keyed by rule metric name.
func (m Metrics) Values() map[string]float64 {
	return map[string]float64{
		MetricDrawdown:   m.Drawdown,
		MetricVolatility: m.Volatility,
		MetricExposure:   m.Exposure,
		MetricScore:      m.Score,
		MetricEquity:     m.Equity,
	}
}

// Engine tracks running risk state for one portfolio. Each backtest or
// monitored portfolio owns its own Engine.
type Engine struct {
	cfg       Config
	weights   Weights
	evaluator *alert.Evaluator
	logger    *zap.Logger

	peak    float64
	started bool
	// trailing equity values, at most Window+1
	equity []float64
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	logger    *zap.Logger
	notifiers []alert.Notifier
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *engineOptions) { o.logger = l }
}

// WithNotifiers delivers fired alerts to notifiers.
func WithNotifiers(n ...alert.Notifier) Option {
	return func(o *engineOptions) { o.notifiers = append(o.notifiers, n...) }
}

// NewEngine validates cfg and creates an engine.
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := engineOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	evaluator, err := alert.NewEvaluator(cfg.Rules, o.notifiers, o.logger)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:       cfg,
		weights:   cfg.Weights.normalized(),
		evaluator: evaluator,
		logger:    o.logger,
		equity:    make([]float64, 0, cfg.Window+1),
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Update folds snap into the running state and evaluates rules.
func (e *Engine) Update(ctx context.Context, snap core.PortfolioSnapshot) (Metrics, []core.RiskAlert) {
	equity := snap.Equity.InexactFloat64()
	gross := snap.GrossExposure.InexactFloat64()

	if !e.started || equity > e.peak {
		e.peak = equity
		e.started = true
	}

	e.equity = append(e.equity, equity)
	if len(e.equity) > e.cfg.Window+1 {
		e.equity = append(e.equity[:0], e.equity[len(e.equity)-e.cfg.Window-1:]...)
	}

	m := Metrics{
		Time:       snap.Time,
		Equity:     equity,
		Peak:       e.peak,
		Drawdown:   indicator.Drawdown(e.peak, equity),
		Volatility: indicator.StdDev(indicator.Returns(e.equity)),
		Exposure:   exposure(gross, equity),
	}
	m.Score = e.score(m)

	alerts := e.evaluator.Evaluate(ctx, snap.Time, m.Values())
	return m, alerts
}

// Evaluate resets the engine and replays a completed equity curve.
func (e *Engine) Evaluate(ctx context.Context, curve []core.PortfolioSnapshot) ([]Metrics, []core.RiskAlert) {
	e.Reset()

	metrics := make([]Metrics, 0, len(curve))
	var alerts []core.RiskAlert
	for _, snap := range curve {
		m, fired := e.Update(ctx, snap)
		metrics = append(metrics, m)
		alerts = append(alerts, fired...)
	}
	return metrics, alerts
}

// Reset clears running state and re-arms every rule.
func (e *Engine) Reset() {
	e.peak = 0
	e.started = false
	e.equity = e.equity[:0]
	e.evaluator.Reset()
}

func (e *Engine) score(m Metrics) float64 {
	vol := math.Min(1, m.Volatility/e.cfg.VolatilityCap)
	exp := clamp01(m.Exposure)

	s := e.weights.Drawdown*m.Drawdown +
		e.weights.Volatility*vol +
		e.weights.Exposure*exp
	return clamp01(s)
}

// exposure is gross position value over equity. Non-positive equity is
// treated as fully exposed.
func exposure(gross, equity float64) float64 {
	if equity <= 0 {
		return 1
	}
	return gross / equity
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
