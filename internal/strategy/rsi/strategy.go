// Package rsi implements an RSI threshold mean-reversion strategy.
package rsi

import (
	"fmt"

	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/indicator"
	"github.com/newthinker/tradesim/internal/series"
	"github.com/newthinker/tradesim/internal/strategy"
	"github.com/shopspring/decimal"
)

// RSI buys when flat and the index drops below oversold, and exits the long
// when it rises above overbought.
type RSI struct {
	period     int
	oversold   float64
	overbought float64
	quantity   decimal.Decimal
}

// New creates a new RSI threshold strategy
func New(period int, oversold, overbought float64, quantity decimal.Decimal) *RSI {
	return &RSI{
		period:     period,
		oversold:   oversold,
		overbought: overbought,
		quantity:   quantity,
	}
}

// Factory returns the classic 14/30/70 configuration with unit quantity.
func Factory() strategy.Strategy {
	return New(14, 30, 70, decimal.NewFromInt(1))
}

func (r *RSI) Name() string { return "rsi" }

func (r *RSI) Description() string {
	return fmt.Sprintf("RSI(%d) %.0f/%.0f", r.period, r.oversold, r.overbought)
}

// Wilder smoothing converges slowly, so look back a few periods.
func (r *RSI) Lookback() int { return r.period * 4 }

func (r *RSI) Init(cfg strategy.Config) error {
	var err error
	if r.period, err = strategy.IntParam(cfg.Params, "period", r.period); err != nil {
		return err
	}
	if r.oversold, err = strategy.FloatParam(cfg.Params, "oversold", r.oversold); err != nil {
		return err
	}
	if r.overbought, err = strategy.FloatParam(cfg.Params, "overbought", r.overbought); err != nil {
		return err
	}
	if r.quantity, err = strategy.DecimalParam(cfg.Params, "quantity", r.quantity); err != nil {
		return err
	}

	if r.period < 2 {
		return fmt.Errorf("period must be at least 2, got %d", r.period)
	}
	if r.oversold < 0 || r.overbought > 100 || r.oversold >= r.overbought {
		return fmt.Errorf("need 0 <= oversold < overbought <= 100, got %.2f/%.2f", r.oversold, r.overbought)
	}
	if !r.quantity.IsPositive() {
		return fmt.Errorf("quantity must be positive, got %s", r.quantity)
	}
	return nil
}

func (r *RSI) Decide(window series.Window, portfolio core.PortfolioSnapshot) ([]core.TradeIntent, error) {
	values := indicator.RSI(window.Closes(), r.period)
	if len(values) == 0 {
		return nil, nil
	}
	curr := values[len(values)-1]

	symbol := window.Symbol()
	pos := portfolio.Position(symbol)

	switch {
	case curr < r.oversold && pos.State() == core.StateFlat:
		return []core.TradeIntent{{
			Side:     core.SideBuy,
			Symbol:   symbol,
			Quantity: r.quantity,
			Reason:   fmt.Sprintf("rsi %.2f below %.0f", curr, r.oversold),
		}}, nil
	case curr > r.overbought && pos.IsLong():
		return []core.TradeIntent{{
			Side:     core.SideSell,
			Symbol:   symbol,
			Quantity: pos.Quantity,
			Reason:   fmt.Sprintf("rsi %.2f above %.0f", curr, r.overbought),
		}}, nil
	}
	return nil, nil
}
