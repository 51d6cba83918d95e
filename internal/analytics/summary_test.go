package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/newthinker/tradesim/internal/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func curveOf(values ...float64) []core.PortfolioSnapshot {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	curve := make([]core.PortfolioSnapshot, len(values))
	for i, v := range values {
		eq := decimal.NewFromFloat(v)
		curve[i] = core.PortfolioSnapshot{Time: start.AddDate(0, 0, i), Cash: eq, Equity: eq}
	}
	return curve
}

func closing(pnl string) core.Fill {
	return core.Fill{Closing: true, RealizedPnL: decimal.RequireFromString(pnl), Fee: decimal.RequireFromString("1")}
}

func TestSummarize_SingleBar(t *testing.T) {
	s := Summarize(decimal.NewFromInt(10000), curveOf(10000), nil, 252)

	assert.Equal(t, 1, s.Bars)
	assert.Zero(t, s.SharpeRatio)
	assert.Zero(t, s.MaxDrawdown)
	assert.Zero(t, s.WinRate)
	assert.Zero(t, s.TotalReturn)
	assert.True(t, s.FinalEquity.Equal(decimal.NewFromInt(10000)))
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(decimal.Zero, nil, nil, 0)
	assert.Zero(t, s.Bars)
	assert.Zero(t, s.SharpeRatio)
}

func TestSummarize_FlatCurve(t *testing.T) {
	s := Summarize(decimal.NewFromInt(100), curveOf(100, 100, 100, 100), nil, 252)
	assert.Zero(t, s.SharpeRatio, "zero variance is a defined case")
	assert.Zero(t, s.AnnualizedVolatility)
}

func TestSummarize_ReturnsAndDrawdown(t *testing.T) {
	s := Summarize(decimal.NewFromInt(100), curveOf(100, 110, 99, 121), nil, 252)

	assert.InDelta(t, 0.21, s.TotalReturn, 1e-12)
	assert.InDelta(t, 0.1, s.MaxDrawdown, 1e-12)

	returns := []float64{0.1, -0.1, 121.0/99.0 - 1}
	mean := (returns[0] + returns[1] + returns[2]) / 3
	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	std := math.Sqrt(variance / 2)
	assert.InDelta(t, mean/std*math.Sqrt(252), s.SharpeRatio, 1e-9)
	assert.InDelta(t, std*math.Sqrt(252), s.AnnualizedVolatility, 1e-9)
}

func TestSummarize_Trades(t *testing.T) {
	fills := []core.Fill{
		{Fee: decimal.RequireFromString("1")},
		closing("30"),
		{Fee: decimal.RequireFromString("1")},
		closing("-10"),
		closing("0"),
	}
	s := Summarize(decimal.NewFromInt(100), curveOf(100, 101), fills, 252)

	assert.Equal(t, 5, s.TotalTrades)
	assert.Equal(t, 3, s.ClosingTrades)
	assert.Equal(t, 1, s.WinningTrades)
	assert.Equal(t, 2, s.LosingTrades)
	assert.InDelta(t, 1.0/3.0, s.WinRate, 1e-12)
	assert.InDelta(t, 3.0, s.ProfitFactor, 1e-12)
	assert.True(t, s.TotalFees.Equal(decimal.NewFromInt(5)))
}

func TestSummarize_Idempotent(t *testing.T) {
	curve := curveOf(100, 95, 105, 90, 120)
	fills := []core.Fill{closing("5"), closing("-2")}

	initial := decimal.NewFromInt(100)
	assert.Equal(t, Summarize(initial, curve, fills, 252), Summarize(initial, curve, fills, 252))
}

func TestSummarize_FirstBarCostsCountAgainstReturn(t *testing.T) {
	// Fees and slippage paid on the first bar leave the first point below
	// the starting cash.
	s := Summarize(decimal.NewFromInt(10000), curveOf(9850, 9850, 9850), nil, 252)

	assert.True(t, s.InitialEquity.Equal(decimal.NewFromInt(10000)), s.InitialEquity.String())
	assert.True(t, s.FinalEquity.Equal(decimal.NewFromInt(9850)))
	assert.InDelta(t, -0.015, s.TotalReturn, 1e-12)
	assert.Zero(t, s.MaxDrawdown)
}

func TestSummarize_NonPositiveInitialFallsBackToCurve(t *testing.T) {
	s := Summarize(decimal.Zero, curveOf(100, 110), nil, 252)

	assert.True(t, s.InitialEquity.Equal(decimal.NewFromInt(100)))
	assert.InDelta(t, 0.1, s.TotalReturn, 1e-12)
}

func TestSharpeRatio_Degenerate(t *testing.T) {
	assert.Zero(t, SharpeRatio(nil, 252))
	assert.Zero(t, SharpeRatio([]float64{0.1}, 252))
}
