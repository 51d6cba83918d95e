package backtest

import (
	"context"
	"time"

	"github.com/newthinker/tradesim/internal/analytics"
	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/risk"
	"github.com/shopspring/decimal"
)

// BarProvider loads historical bars at the boundary of a run.
type BarProvider interface {
	Bars(ctx context.Context, symbol string, start, end time.Time) ([]core.Bar, error)
}

// ResultSink persists finished results. The SQLite journal and the archive
// result store implement it.
type ResultSink interface {
	SaveRun(ctx context.Context, res *Result) error
}

// Recorder receives per-run counters. *metrics.Registry implements it.
type Recorder interface {
	RecordBacktest(strategy, status string, duration float64)
	RecordBar(strategy string)
	RecordFill(strategy, side string)
	RecordRejection(strategy, code string)
	RecordAlert(rule, severity string)
}

// Result holds the complete backtest output. It is read-only once returned.
type Result struct {
	RunID       string                   `json:"run_id"`
	Strategy    string                   `json:"strategy"`
	Params      map[string]any           `json:"params,omitempty"`
	Symbol      string                   `json:"symbol"`
	StartDate   time.Time                `json:"start_date"`
	EndDate     time.Time                `json:"end_date"`
	InitialCash decimal.Decimal          `json:"initial_cash"`
	EquityCurve []core.PortfolioSnapshot `json:"equity_curve"`
	TradeLog    []core.TradeLogEntry     `json:"trade_log"`
	Fills       []core.Fill              `json:"fills"`
	Rejections  []core.Rejection         `json:"rejections"`
	Risk        []risk.Metrics           `json:"risk"`
	Alerts      []core.RiskAlert         `json:"alerts"`
	Summary     analytics.Summary        `json:"summary"`
	Duration    time.Duration            `json:"duration"`
}

// FinalEquity returns the equity at the last bar.
func (r *Result) FinalEquity() decimal.Decimal {
	if len(r.EquityCurve) == 0 {
		return r.InitialCash
	}
	return r.EquityCurve[len(r.EquityCurve)-1].Equity
}

type nopRecorder struct{}

func (nopRecorder) RecordBacktest(string, string, float64) {}
func (nopRecorder) RecordBar(string)                       {}
func (nopRecorder) RecordFill(string, string)              {}
func (nopRecorder) RecordRejection(string, string)         {}
func (nopRecorder) RecordAlert(string, string)             {}
