package rsi

import (
	"testing"

	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/series/seriestest"
	"github.com/newthinker/tradesim/internal/strategy"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRSI_ImplementsStrategy(t *testing.T) {
	var _ strategy.Strategy = (*RSI)(nil)
}

func TestRSI_BuyWhenOversold(t *testing.T) {
	s := New(3, 30, 70, decimal.RequireFromString("0.1"))
	ser := seriestest.Series(t, "ETH", 100, 98, 96, 94, 92, 90)

	intents, err := s.Decide(ser.Trailing(ser.Len()-1, s.Lookback()), core.PortfolioSnapshot{})
	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.Equal(t, core.SideBuy, intents[0].Side)
	assert.True(t, intents[0].Quantity.Equal(decimal.RequireFromString("0.1")))
}

func TestRSI_NoBuyWhenAlreadyLong(t *testing.T) {
	s := New(3, 30, 70, decimal.NewFromInt(1))
	ser := seriestest.Series(t, "ETH", 100, 98, 96, 94, 92, 90)

	snap := core.PortfolioSnapshot{Positions: map[string]core.Position{
		"ETH": {Symbol: "ETH", Quantity: decimal.NewFromInt(1)},
	}}
	intents, err := s.Decide(ser.Trailing(ser.Len()-1, s.Lookback()), snap)
	require.NoError(t, err)
	assert.Empty(t, intents)
}

func TestRSI_SellWhenOverbought(t *testing.T) {
	s := New(3, 30, 70, decimal.NewFromInt(1))
	ser := seriestest.Series(t, "ETH", 90, 92, 94, 96, 98, 100)

	snap := core.PortfolioSnapshot{Positions: map[string]core.Position{
		"ETH": {Symbol: "ETH", Quantity: decimal.NewFromInt(3)},
	}}
	intents, err := s.Decide(ser.Trailing(ser.Len()-1, s.Lookback()), snap)
	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.Equal(t, core.SideSell, intents[0].Side)
	assert.True(t, intents[0].Quantity.Equal(decimal.NewFromInt(3)))

	// Flat: overbought does not open a short
	intents, err = s.Decide(ser.Trailing(ser.Len()-1, s.Lookback()), core.PortfolioSnapshot{})
	require.NoError(t, err)
	assert.Empty(t, intents)
}

func TestRSI_NotEnoughData(t *testing.T) {
	s := New(14, 30, 70, decimal.NewFromInt(1))
	ser := seriestest.Series(t, "ETH", 1, 2, 3)

	intents, err := s.Decide(ser.Trailing(ser.Len()-1, s.Lookback()), core.PortfolioSnapshot{})
	require.NoError(t, err)
	assert.Empty(t, intents)
}

func TestRSI_Init(t *testing.T) {
	s := Factory()
	require.NoError(t, s.Init(strategy.Config{Params: map[string]any{
		"period": 7, "oversold": 25, "overbought": 75.0, "quantity": "2",
	}}))
	assert.Equal(t, "RSI(7) 25/75", s.Description())
	assert.Equal(t, 28, s.Lookback())

	tests := []map[string]any{
		{"period": 1},
		{"oversold": 80, "overbought": 70},
		{"overbought": 101.0},
		{"quantity": -1},
	}
	for _, params := range tests {
		assert.Error(t, Factory().Init(strategy.Config{Params: params}), "%v", params)
	}
}
