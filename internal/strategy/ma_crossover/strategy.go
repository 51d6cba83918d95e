package ma_crossover

import (
	"fmt"
	"strings"

	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/indicator"
	"github.com/newthinker/tradesim/internal/series"
	"github.com/newthinker/tradesim/internal/strategy"
	"github.com/shopspring/decimal"
)

// MACrossover implements a moving average crossover strategy
type MACrossover struct {
	fastPeriod int
	slowPeriod int
	quantity   decimal.Decimal
	short      bool
	average    indicator.Average
}

// New creates a new MA Crossover strategy
func New(fastPeriod, slowPeriod int, quantity decimal.Decimal) *MACrossover {
	return &MACrossover{
		fastPeriod: fastPeriod,
		slowPeriod: slowPeriod,
		quantity:   quantity,
		average:    indicator.Simple,
	}
}

// Factory returns a strategy.Factory with default 10/30 periods and unit quantity.
func Factory() strategy.Strategy {
	return New(10, 30, decimal.NewFromInt(1))
}

func (m *MACrossover) Name() string {
	return "ma_crossover"
}

func (m *MACrossover) Description() string {
	return fmt.Sprintf("%s Crossover (%d/%d)", m.label(), m.fastPeriod, m.slowPeriod)
}

func (m *MACrossover) label() string {
	return strings.ToUpper(string(m.average))
}

// emaWarmup is the number of slow periods an exponential average gets to
// forget its seed.
const emaWarmup = 5

// Lookback needs one extra bar to compare the previous crossover state. An
// exponential average depends on every earlier close, so it is given
// emaWarmup slow periods to converge on the full-history value.
func (m *MACrossover) Lookback() int {
	if m.average == indicator.Exponential {
		return m.slowPeriod*emaWarmup + 1
	}
	return m.slowPeriod + 1
}

func (m *MACrossover) Init(cfg strategy.Config) error {
	var err error
	if m.fastPeriod, err = strategy.IntParam(cfg.Params, "fast_period", m.fastPeriod); err != nil {
		return err
	}
	if m.slowPeriod, err = strategy.IntParam(cfg.Params, "slow_period", m.slowPeriod); err != nil {
		return err
	}
	if m.quantity, err = strategy.DecimalParam(cfg.Params, "quantity", m.quantity); err != nil {
		return err
	}
	if m.short, err = strategy.BoolParam(cfg.Params, "short", m.short); err != nil {
		return err
	}
	kind, err := strategy.StringParam(cfg.Params, "ma_type", string(m.average))
	if err != nil {
		return err
	}
	if m.average, err = indicator.ParseAverage(kind); err != nil {
		return err
	}

	if m.fastPeriod <= 0 || m.fastPeriod >= m.slowPeriod {
		return fmt.Errorf("fast_period must be positive and below slow_period, got %d/%d", m.fastPeriod, m.slowPeriod)
	}
	if !m.quantity.IsPositive() {
		return fmt.Errorf("quantity must be positive, got %s", m.quantity)
	}
	return nil
}

func (m *MACrossover) Decide(window series.Window, portfolio core.PortfolioSnapshot) ([]core.TradeIntent, error) {
	if window.Len() < m.slowPeriod+1 {
		return nil, nil // Not enough data
	}

	prices := window.Closes()

	fastMA := m.average.Moving(prices, m.fastPeriod)
	slowMA := m.average.Moving(prices, m.slowPeriod)

	if len(fastMA) < 2 || len(slowMA) < 2 {
		return nil, nil
	}

	currFast := fastMA[len(fastMA)-1]
	prevFast := fastMA[len(fastMA)-2]
	currSlow := slowMA[len(slowMA)-1]
	prevSlow := slowMA[len(slowMA)-2]

	symbol := window.Symbol()
	pos := portfolio.Position(symbol)

	// Golden Cross: fast crosses above slow
	if prevFast <= prevSlow && currFast > currSlow && !pos.IsLong() {
		// Cover any short and open the configured long size
		qty := m.quantity.Add(pos.Quantity.Abs())
		return []core.TradeIntent{{
			Side:     core.SideBuy,
			Symbol:   symbol,
			Quantity: qty,
			Reason:   fmt.Sprintf("golden cross: %s%d (%.2f) above %s%d (%.2f)", m.label(), m.fastPeriod, currFast, m.label(), m.slowPeriod, currSlow),
		}}, nil
	}

	// Death Cross: fast crosses below slow
	if prevFast >= prevSlow && currFast < currSlow {
		reason := fmt.Sprintf("death cross: %s%d (%.2f) below %s%d (%.2f)", m.label(), m.fastPeriod, currFast, m.label(), m.slowPeriod, currSlow)
		switch {
		case pos.IsLong():
			qty := pos.Quantity
			if m.short {
				qty = qty.Add(m.quantity)
			}
			return []core.TradeIntent{{Side: core.SideSell, Symbol: symbol, Quantity: qty, Reason: reason}}, nil
		case m.short && !pos.IsShort():
			return []core.TradeIntent{{Side: core.SideSell, Symbol: symbol, Quantity: m.quantity, Reason: reason}}, nil
		}
	}

	return nil, nil
}
