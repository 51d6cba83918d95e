package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bar represents one OHLCV candlestick for a fixed timeframe
type Bar struct {
	Symbol string          `json:"symbol"`
	Time   time.Time       `json:"time"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
}

// Side represents the direction of a trade
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Sign returns +1 for buys and -1 for sells.
func (s Side) Sign() decimal.Decimal {
	if s == SideSell {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// Valid reports whether s is a known side.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// TradeIntent is a strategy's request to trade. It is consumed once by the ledger.
type TradeIntent struct {
	Side     Side            `json:"side"`
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	Reason   string          `json:"reason,omitempty"`
}

// Fill is an executed intent. Immutable once created.
type Fill struct {
	ID       string          `json:"id"`
	Time     time.Time       `json:"time"`
	Symbol   string          `json:"symbol"`
	Side     Side            `json:"side"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Fee      decimal.Decimal `json:"fee"`
	// RealizedPnL is net of the fee for fills that reduce a position.
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	// Closing is true when the fill reduced an existing position.
	Closing bool   `json:"closing"`
	Reason  string `json:"reason,omitempty"`
}

// Notional returns quantity * price.
func (f Fill) Notional() decimal.Decimal {
	return f.Quantity.Mul(f.Price)
}

// IsWin returns true if the fill closed exposure at a profit
func (f Fill) IsWin() bool {
	return f.Closing && f.RealizedPnL.IsPositive()
}

// Rejection records an intent that could not be executed.
type Rejection struct {
	Time   time.Time   `json:"time"`
	Intent TradeIntent `json:"intent"`
	Code   string      `json:"code"`
	Reason string      `json:"reason"`
}

// TradeLogEntry is one record in the ordered, append-only trade log.
// Exactly one of Fill or Rejection is set.
type TradeLogEntry struct {
	Fill      *Fill      `json:"fill,omitempty"`
	Rejection *Rejection `json:"rejection,omitempty"`
}

// Time returns the timestamp of the underlying record.
func (e TradeLogEntry) Time() time.Time {
	if e.Fill != nil {
		return e.Fill.Time
	}
	if e.Rejection != nil {
		return e.Rejection.Time
	}
	return time.Time{}
}

// PositionState is the per-symbol ledger state.
type PositionState string

const (
	StateFlat  PositionState = "flat"
	StateLong  PositionState = "long"
	StateShort PositionState = "short"
)

// Position represents a holding in one symbol.
type Position struct {
	Symbol string `json:"symbol"`
	// Quantity is signed, negative for short.
	Quantity    decimal.Decimal `json:"quantity"`
	AverageCost decimal.Decimal `json:"average_cost"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
}

// State derives the position state from the quantity sign.
func (p Position) State() PositionState {
	switch p.Quantity.Sign() {
	case 1:
		return StateLong
	case -1:
		return StateShort
	default:
		return StateFlat
	}
}

// IsLong returns true if this is a long position.
func (p Position) IsLong() bool {
	return p.Quantity.IsPositive()
}

// IsShort returns true if this is a short position.
func (p Position) IsShort() bool {
	return p.Quantity.IsNegative()
}

// MarketValue returns the signed value of the position at price.
func (p Position) MarketValue(price decimal.Decimal) decimal.Decimal {
	return p.Quantity.Mul(price)
}

// PortfolioSnapshot is the marked-to-market state of the ledger at one bar.
type PortfolioSnapshot struct {
	Time      time.Time                  `json:"time"`
	Cash      decimal.Decimal            `json:"cash"`
	Positions map[string]Position        `json:"positions"`
	Prices    map[string]decimal.Decimal `json:"prices"`
	Equity    decimal.Decimal            `json:"equity"`
	// GrossExposure is the sum of absolute position values.
	GrossExposure decimal.Decimal `json:"gross_exposure"`
}

// Position returns the position for symbol, or a flat one.
func (s PortfolioSnapshot) Position(symbol string) Position {
	if p, ok := s.Positions[symbol]; ok {
		return p
	}
	return Position{Symbol: symbol}
}

// Severity of a risk alert
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	}
	return false
}

// RiskAlert is emitted when a monitored metric crosses into breach.
type RiskAlert struct {
	Time      time.Time `json:"time"`
	Rule      string    `json:"rule"`
	Metric    string    `json:"metric"`
	Operator  string    `json:"operator"`
	Threshold float64   `json:"threshold"`
	Observed  float64   `json:"observed"`
	Severity  Severity  `json:"severity"`
}
