// Package analytics derives performance statistics from a completed equity
// curve and trade log.
package analytics

import (
	"math"

	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/indicator"
	"github.com/shopspring/decimal"
)

// DefaultPeriodsPerYear assumes daily bars on a trading calendar.
const DefaultPeriodsPerYear = 252

// Summary holds performance statistics
type Summary struct {
	Bars          int             `json:"bars"`
	InitialEquity decimal.Decimal `json:"initial_equity"`
	FinalEquity   decimal.Decimal `json:"final_equity"`
	// TotalReturn is a fraction, 0.05 = 5%.
	TotalReturn          float64 `json:"total_return"`
	SharpeRatio          float64 `json:"sharpe_ratio"`
	AnnualizedVolatility float64 `json:"annualized_volatility"`
	MaxDrawdown          float64 `json:"max_drawdown"`

	TotalTrades   int `json:"total_trades"`
	ClosingTrades int `json:"closing_trades"`
	WinningTrades int `json:"winning_trades"`
	LosingTrades  int `json:"losing_trades"`
	// WinRate is winning closing fills over closing fills, 0 when there are none.
	WinRate float64 `json:"win_rate"`
	// ProfitFactor is gross profit over gross loss, 0 when there is no loss.
	ProfitFactor float64         `json:"profit_factor"`
	GrossProfit  decimal.Decimal `json:"gross_profit"`
	GrossLoss    decimal.Decimal `json:"gross_loss"`
	TotalFees    decimal.Decimal `json:"total_fees"`
}

// Summarize computes statistics over curve and fills. Total return is measured
// against initial, the equity before the first bar, so costs paid on the first
// bar count against it; a non-positive initial falls back to the first point
// of the curve. It is pure: the same inputs always produce the same Summary.
func Summarize(initial decimal.Decimal, curve []core.PortfolioSnapshot, fills []core.Fill, periodsPerYear float64) Summary {
	if periodsPerYear <= 0 {
		periodsPerYear = DefaultPeriodsPerYear
	}

	s := Summary{
		Bars:        len(curve),
		GrossProfit: decimal.Zero,
		GrossLoss:   decimal.Zero,
		TotalFees:   decimal.Zero,
	}

	if len(curve) > 0 {
		s.InitialEquity = initial
		if !initial.IsPositive() {
			s.InitialEquity = curve[0].Equity
		}
		s.FinalEquity = curve[len(curve)-1].Equity
		if s.InitialEquity.IsPositive() {
			s.TotalReturn = s.FinalEquity.Sub(s.InitialEquity).Div(s.InitialEquity).InexactFloat64()
		}

		equity := EquityValues(curve)
		returns := indicator.Returns(equity)
		s.SharpeRatio = SharpeRatio(returns, periodsPerYear)
		s.AnnualizedVolatility = indicator.StdDev(returns) * math.Sqrt(periodsPerYear)
		s.MaxDrawdown = indicator.MaxDrawdown(equity)
	}

	s.TotalTrades = len(fills)
	for _, f := range fills {
		s.TotalFees = s.TotalFees.Add(f.Fee)
		if !f.Closing {
			continue
		}
		s.ClosingTrades++
		switch {
		case f.RealizedPnL.IsPositive():
			s.WinningTrades++
			s.GrossProfit = s.GrossProfit.Add(f.RealizedPnL)
		default:
			s.LosingTrades++
			s.GrossLoss = s.GrossLoss.Add(f.RealizedPnL.Abs())
		}
	}

	if s.ClosingTrades > 0 {
		s.WinRate = float64(s.WinningTrades) / float64(s.ClosingTrades)
	}
	if s.GrossLoss.IsPositive() {
		s.ProfitFactor = s.GrossProfit.Div(s.GrossLoss).InexactFloat64()
	}
	return s
}

// SharpeRatio computes mean/stdev of returns annualized by periodsPerYear.
// Assumes a risk-free rate of 0. Zero dispersion yields 0.
func SharpeRatio(returns []float64, periodsPerYear float64) float64 {
	stdDev := indicator.StdDev(returns)
	if stdDev == 0 {
		return 0
	}
	return indicator.Mean(returns) / stdDev * math.Sqrt(periodsPerYear)
}

// EquityValues extracts equity from each snapshot as float64.
func EquityValues(curve []core.PortfolioSnapshot) []float64 {
	values := make([]float64, len(curve))
	for i, snap := range curve {
		values[i] = snap.Equity.InexactFloat64()
	}
	return values
}
