package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Liquidity identifies which side of the book an execution took.
type Liquidity string

const (
	Maker Liquidity = "maker"
	Taker Liquidity = "taker"
)

// FeeModel computes the fee charged for one execution.
type FeeModel interface {
	Name() string
	Fee(notional, quantity decimal.Decimal, liq Liquidity) decimal.Decimal
	Validate() error
}

// FlatFee charges a fixed amount per execution.
type FlatFee struct {
	Amount decimal.Decimal
}

func (f FlatFee) Name() string { return "flat" }

func (f FlatFee) Fee(_, _ decimal.Decimal, _ Liquidity) decimal.Decimal {
	return f.Amount
}

func (f FlatFee) Validate() error {
	if f.Amount.IsNegative() {
		return fmt.Errorf("flat fee must not be negative, got %s", f.Amount)
	}
	return nil
}

// PercentageFee charges a fraction of notional.
type PercentageFee struct {
	Rate decimal.Decimal
}

func (f PercentageFee) Name() string { return "percentage" }

func (f PercentageFee) Fee(notional, _ decimal.Decimal, _ Liquidity) decimal.Decimal {
	return notional.Mul(f.Rate)
}

func (f PercentageFee) Validate() error {
	return validateRate("rate", f.Rate)
}

// MakerTakerFee charges a different fraction of notional per liquidity side.
type MakerTakerFee struct {
	MakerRate decimal.Decimal
	TakerRate decimal.Decimal
}

func (f MakerTakerFee) Name() string { return "maker_taker" }

func (f MakerTakerFee) Fee(notional, _ decimal.Decimal, liq Liquidity) decimal.Decimal {
	if liq == Maker {
		return notional.Mul(f.MakerRate)
	}
	return notional.Mul(f.TakerRate)
}

func (f MakerTakerFee) Validate() error {
	if err := validateRate("maker rate", f.MakerRate); err != nil {
		return err
	}
	return validateRate("taker rate", f.TakerRate)
}

// NoFee is the zero fee model.
type NoFee struct{}

func (NoFee) Name() string { return "none" }

func (NoFee) Fee(_, _ decimal.Decimal, _ Liquidity) decimal.Decimal { return decimal.Zero }

func (NoFee) Validate() error { return nil }

func validateRate(name string, rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%s must be in [0, 1), got %s", name, rate)
	}
	return nil
}
