package ledger

import (
	"github.com/newthinker/tradesim/internal/core"
	"github.com/shopspring/decimal"
)

const maxPrecision = 18

var bpsDivisor = decimal.NewFromInt(10000)

// Config holds the simulated account and execution model.
type Config struct {
	InitialCash decimal.Decimal
	// Fee defaults to NoFee.
	Fee FeeModel
	// Liquidity used when charging fees; market intents are taker by default.
	Liquidity Liquidity
	// SlippageBps worsens the execution price against the trader.
	SlippageBps decimal.Decimal
	AllowShort  bool
	// Leverage of 1 (or 0) means cash may never go negative.
	Leverage decimal.Decimal
	// PricePrecision is the number of decimal places kept for prices, fees and cash.
	PricePrecision int32
	// QuantityPrecision is the number of decimal places kept for quantities.
	QuantityPrecision int32
}

// DefaultConfig returns a fee-free, unlevered, long-only account with 10000 cash.
func DefaultConfig() Config {
	return Config{
		InitialCash:       decimal.NewFromInt(10000),
		Fee:               NoFee{},
		Liquidity:         Taker,
		SlippageBps:       decimal.Zero,
		Leverage:          decimal.NewFromInt(1),
		PricePrecision:    8,
		QuantityPrecision: 8,
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if !c.InitialCash.IsPositive() {
		return core.Errorf(core.ErrConfigInvalid, "initial cash must be positive, got %s", c.InitialCash)
	}
	if c.SlippageBps.IsNegative() || c.SlippageBps.GreaterThanOrEqual(bpsDivisor) {
		return core.Errorf(core.ErrConfigInvalid, "slippage_bps must be in [0, 10000), got %s", c.SlippageBps)
	}
	if !c.Leverage.IsZero() && c.Leverage.LessThan(decimal.NewFromInt(1)) {
		return core.Errorf(core.ErrConfigInvalid, "leverage must be >= 1, got %s", c.Leverage)
	}
	if c.PricePrecision < 0 || c.PricePrecision > maxPrecision {
		return core.Errorf(core.ErrConfigInvalid, "price precision must be in [0, %d], got %d", maxPrecision, c.PricePrecision)
	}
	if c.QuantityPrecision < 0 || c.QuantityPrecision > maxPrecision {
		return core.Errorf(core.ErrConfigInvalid, "quantity precision must be in [0, %d], got %d", maxPrecision, c.QuantityPrecision)
	}
	if c.Liquidity != "" && c.Liquidity != Maker && c.Liquidity != Taker {
		return core.Errorf(core.ErrConfigInvalid, "unknown liquidity %q", c.Liquidity)
	}
	if c.Fee != nil {
		if err := c.Fee.Validate(); err != nil {
			return core.WrapError(core.ErrConfigInvalid, err)
		}
	}
	return nil
}

// withDefaults fills zero values that have an unambiguous default.
func (c Config) withDefaults() Config {
	if c.Fee == nil {
		c.Fee = NoFee{}
	}
	if c.Liquidity == "" {
		c.Liquidity = Taker
	}
	if c.Leverage.IsZero() {
		c.Leverage = decimal.NewFromInt(1)
	}
	return c
}
