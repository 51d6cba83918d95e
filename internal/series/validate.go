package series

import (
	"github.com/newthinker/tradesim/internal/core"
)

// Validate checks ordering and OHLC consistency of bars.
func Validate(bars []core.Bar) error {
	for i, b := range bars {
		if err := ValidateBar(b); err != nil {
			return core.Errorf(core.ErrValidation, "bar %d (%s): %v", i, b.Time.Format("2006-01-02T15:04:05Z07:00"), err)
		}
		if i == 0 {
			continue
		}
		prev := bars[i-1]
		if b.Symbol != prev.Symbol {
			return core.Errorf(core.ErrValidation, "bar %d: symbol %q differs from %q", i, b.Symbol, prev.Symbol)
		}
		if !b.Time.After(prev.Time) {
			return core.Errorf(core.ErrValidation, "bar %d: timestamp %s not after %s",
				i, b.Time.Format("2006-01-02T15:04:05Z07:00"), prev.Time.Format("2006-01-02T15:04:05Z07:00"))
		}
	}
	return nil
}

type barError string

func (e barError) Error() string { return string(e) }

// ValidateBar checks a single bar.
func ValidateBar(b core.Bar) error {
	if b.Time.IsZero() {
		return barError("missing timestamp")
	}
	if !b.Open.IsPositive() || !b.High.IsPositive() || !b.Low.IsPositive() || !b.Close.IsPositive() {
		return barError("prices must be positive")
	}
	if b.Volume.IsNegative() {
		return barError("volume must not be negative")
	}
	if b.High.LessThan(b.Open) || b.High.LessThan(b.Close) {
		return barError("high below open/close")
	}
	if b.Low.GreaterThan(b.Open) || b.Low.GreaterThan(b.Close) {
		return barError("low above open/close")
	}
	return nil
}
