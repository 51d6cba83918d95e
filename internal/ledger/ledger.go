// Package ledger implements the simulated trading account: cash, positions,
// fills and rejected intents, with decimal arithmetic throughout.
package ledger

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/newthinker/tradesim/internal/core"
	"github.com/shopspring/decimal"
)

// fillNamespace seeds deterministic fill IDs so that replays produce
// identical trade logs.
var fillNamespace = uuid.MustParse("6f1c2b8e-3c55-4d0e-9a51-7d0f3f1e2a10")

// Ledger tracks positions and cash, and applies trade intents against bar prices.
// A Ledger is owned by a single goroutine; it is not safe for concurrent use.
type Ledger struct {
	cfg Config

	cash       decimal.Decimal
	positions  map[string]*core.Position // symbol -> position
	marks      map[string]decimal.Decimal
	log        []core.TradeLogEntry
	fills      []core.Fill
	rejections []core.Rejection
}

// New creates a ledger funded with cfg.InitialCash.
func New(cfg Config) (*Ledger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	return &Ledger{
		cfg:       cfg,
		cash:      cfg.InitialCash.Round(cfg.PricePrecision),
		positions: make(map[string]*core.Position),
		marks:     make(map[string]decimal.Decimal),
	}, nil
}

// Config returns the ledger's effective configuration.
func (l *Ledger) Config() Config { return l.cfg }

// Cash returns the current cash balance.
func (l *Ledger) Cash() decimal.Decimal { return l.cash }

// Position returns the position for symbol. ok is false when no record exists.
func (l *Ledger) Position(symbol string) (core.Position, bool) {
	if pos, exists := l.positions[symbol]; exists {
		return *pos, true
	}
	return core.Position{Symbol: symbol}, false
}

// State returns the Flat/Long/Short state for symbol.
func (l *Ledger) State(symbol string) core.PositionState {
	pos, _ := l.Position(symbol)
	return pos.State()
}

// ClosePosition removes the record of a flat position.
func (l *Ledger) ClosePosition(symbol string) error {
	pos, exists := l.positions[symbol]
	if !exists {
		return core.Errorf(core.ErrNotFound, "no position for %s", symbol)
	}
	if !pos.Quantity.IsZero() {
		return core.Errorf(core.ErrValidation, "position %s is not flat (%s)", symbol, pos.Quantity)
	}
	delete(l.positions, symbol)
	return nil
}

// Log returns a copy of the ordered trade log.
func (l *Ledger) Log() []core.TradeLogEntry {
	return append([]core.TradeLogEntry(nil), l.log...)
}

// Fills returns a copy of all executed fills in order.
func (l *Ledger) Fills() []core.Fill {
	return append([]core.Fill(nil), l.fills...)
}

// Rejections returns a copy of all rejected intents in order.
func (l *Ledger) Rejections() []core.Rejection {
	return append([]core.Rejection(nil), l.rejections...)
}

// quote holds the derived execution terms of an intent at a bar.
type quote struct {
	quantity decimal.Decimal
	price    decimal.Decimal
	notional decimal.Decimal
	fee      decimal.Decimal
}

func (l *Ledger) quote(intent core.TradeIntent, bar core.Bar) (quote, error) {
	if !intent.Side.Valid() {
		return quote{}, core.Errorf(core.ErrValidation, "unknown side %q", intent.Side)
	}
	if intent.Symbol != bar.Symbol {
		return quote{}, core.Errorf(core.ErrValidation, "intent symbol %q does not match bar symbol %q", intent.Symbol, bar.Symbol)
	}
	qty := intent.Quantity.Truncate(l.cfg.QuantityPrecision)
	if !qty.IsPositive() {
		return quote{}, core.Errorf(core.ErrValidation, "quantity %s is not positive at precision %d", intent.Quantity, l.cfg.QuantityPrecision)
	}

	price := l.ExecutionPrice(intent.Side, bar)
	notional := qty.Mul(price).Round(l.cfg.PricePrecision)
	fee := l.cfg.Fee.Fee(notional, qty, l.cfg.Liquidity).Round(l.cfg.PricePrecision)

	return quote{quantity: qty, price: price, notional: notional, fee: fee}, nil
}

// ExecutionPrice returns the bar close worsened by the configured slippage in
// the direction adverse to the trader.
func (l *Ledger) ExecutionPrice(side core.Side, bar core.Bar) decimal.Decimal {
	price := bar.Close
	if l.cfg.SlippageBps.IsPositive() {
		adj := l.cfg.SlippageBps.Div(bpsDivisor)
		if side == core.SideBuy {
			price = price.Mul(decimal.NewFromInt(1).Add(adj))
		} else {
			price = price.Mul(decimal.NewFromInt(1).Sub(adj))
		}
	}
	return price.Round(l.cfg.PricePrecision)
}

// cashFloor is the lowest cash balance the account may reach.
// Unlevered accounts may not go below zero.
func (l *Ledger) cashFloor(bar core.Bar) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if l.cfg.Leverage.LessThanOrEqual(one) {
		return decimal.Zero
	}
	equity := l.equityAt(bar)
	if !equity.IsPositive() {
		return decimal.Zero
	}
	return equity.Mul(l.cfg.Leverage.Sub(one)).Neg()
}

// CanExecute reports why intent cannot execute at bar, or nil if it can.
func (l *Ledger) CanExecute(intent core.TradeIntent, bar core.Bar) error {
	_, err := l.check(intent, bar)
	return err
}

func (l *Ledger) check(intent core.TradeIntent, bar core.Bar) (quote, error) {
	q, err := l.quote(intent, bar)
	if err != nil {
		return quote{}, err
	}

	floor := l.cashFloor(bar)
	pos, _ := l.Position(intent.Symbol)

	switch intent.Side {
	case core.SideBuy:
		after := l.cash.Sub(q.notional).Sub(q.fee)
		if after.LessThan(floor) {
			return quote{}, core.Errorf(core.ErrInsufficientFunds,
				"need %s, have %s", q.notional.Add(q.fee), l.cash.Sub(floor))
		}
	case core.SideSell:
		if !l.cfg.AllowShort && q.quantity.GreaterThan(pos.Quantity) {
			return quote{}, core.Errorf(core.ErrInsufficientPosition,
				"sell %s %s, hold %s", q.quantity, intent.Symbol, decimal.Max(pos.Quantity, decimal.Zero))
		}
		after := l.cash.Add(q.notional).Sub(q.fee)
		if after.LessThan(floor) {
			return quote{}, core.Errorf(core.ErrInsufficientFunds,
				"fee %s exceeds available cash", q.fee)
		}
	}
	return q, nil
}

// Execute applies intent at bar. When the intent cannot execute it is recorded
// as a rejection and the cause is returned; rejected intents are never retried.
func (l *Ledger) Execute(intent core.TradeIntent, bar core.Bar) (core.Fill, error) {
	q, err := l.check(intent, bar)
	if err != nil {
		l.reject(intent, bar, err)
		return core.Fill{}, err
	}

	l.marks[bar.Symbol] = bar.Close

	pos, exists := l.positions[intent.Symbol]
	if !exists {
		pos = &core.Position{Symbol: intent.Symbol}
		l.positions[intent.Symbol] = pos
	}

	realized, closing := l.applyFill(pos, intent.Side, q)

	if intent.Side == core.SideBuy {
		l.cash = l.cash.Sub(q.notional).Sub(q.fee)
	} else {
		l.cash = l.cash.Add(q.notional).Sub(q.fee)
	}

	seq := len(l.fills)
	fill := core.Fill{
		ID:          l.fillID(seq, bar, intent),
		Time:        bar.Time,
		Symbol:      intent.Symbol,
		Side:        intent.Side,
		Quantity:    q.quantity,
		Price:       q.price,
		Fee:         q.fee,
		RealizedPnL: realized,
		Closing:     closing,
		Reason:      intent.Reason,
	}
	l.fills = append(l.fills, fill)
	l.log = append(l.log, core.TradeLogEntry{Fill: &fill})

	return fill, nil
}

// applyFill updates pos with weighted-average cost on increases and realizes
// P&L on reductions. Returns the realized P&L net of fee and whether the fill
// reduced an existing position.
func (l *Ledger) applyFill(pos *core.Position, side core.Side, q quote) (decimal.Decimal, bool) {
	signed := q.quantity.Mul(side.Sign())
	old := pos.Quantity
	newQty := old.Add(signed)

	// Opening or adding in the same direction
	if old.IsZero() || old.Sign() == signed.Sign() {
		totalCost := old.Abs().Mul(pos.AverageCost).Add(q.quantity.Mul(q.price))
		pos.Quantity = newQty
		pos.AverageCost = totalCost.DivRound(newQty.Abs(), l.costPrecision())
		return decimal.Zero, false
	}

	// Reducing, closing or flipping
	closeQty := decimal.Min(q.quantity, old.Abs())
	gross := q.price.Sub(pos.AverageCost).Mul(closeQty).Mul(decimal.NewFromInt(int64(old.Sign())))
	realized := gross.Sub(q.fee).Round(l.cfg.PricePrecision)

	pos.RealizedPnL = pos.RealizedPnL.Add(realized)
	pos.Quantity = newQty

	// Flipped through zero: the remainder opens a fresh position at the fill price.
	// A flat position keeps its cost basis until explicitly closed.
	if !newQty.IsZero() && newQty.Sign() != old.Sign() {
		pos.AverageCost = q.price
	}
	return realized, true
}

func (l *Ledger) costPrecision() int32 {
	return l.cfg.PricePrecision + 4
}

func (l *Ledger) fillID(seq int, bar core.Bar, intent core.TradeIntent) string {
	name := fmt.Sprintf("%d|%d|%s|%s|%s", seq, bar.Time.UnixNano(), intent.Symbol, intent.Side, intent.Quantity)
	return uuid.NewSHA1(fillNamespace, []byte(name)).String()
}

func (l *Ledger) reject(intent core.TradeIntent, bar core.Bar, err error) {
	rej := core.Rejection{
		Time:   bar.Time,
		Intent: intent,
		Code:   core.CodeOf(err, "REJECTED"),
		Reason: err.Error(),
	}
	l.rejections = append(l.rejections, rej)
	l.log = append(l.log, core.TradeLogEntry{Rejection: &rej})
}

func (l *Ledger) equityAt(bar core.Bar) decimal.Decimal {
	equity := l.cash
	for sym, pos := range l.positions {
		equity = equity.Add(pos.Quantity.Mul(l.markFor(sym, bar)))
	}
	return equity
}

func (l *Ledger) markFor(symbol string, bar core.Bar) decimal.Decimal {
	if symbol == bar.Symbol {
		return bar.Close
	}
	if m, ok := l.marks[symbol]; ok {
		return m
	}
	return decimal.Zero
}

// Snapshot marks every position to bar's close (or the last known close for
// other symbols). It does not modify the ledger.
func (l *Ledger) Snapshot(bar core.Bar) core.PortfolioSnapshot {
	snap := core.PortfolioSnapshot{
		Time:          bar.Time,
		Cash:          l.cash,
		Positions:     make(map[string]core.Position, len(l.positions)),
		Prices:        make(map[string]decimal.Decimal, len(l.positions)),
		Equity:        l.cash,
		GrossExposure: decimal.Zero,
	}

	// Sum in symbol order so the result does not depend on map iteration.
	symbols := make([]string, 0, len(l.positions))
	for sym := range l.positions {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		pos := *l.positions[sym]
		mark := l.markFor(sym, bar)
		value := pos.MarketValue(mark).Round(l.cfg.PricePrecision)

		snap.Positions[sym] = pos
		snap.Prices[sym] = mark
		snap.Equity = snap.Equity.Add(value)
		snap.GrossExposure = snap.GrossExposure.Add(value.Abs())
	}
	return snap
}
