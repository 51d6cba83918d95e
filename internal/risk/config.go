// Package risk computes rolling risk metrics over an equity curve or a live
// snapshot stream and evaluates threshold rules against them.
package risk

import (
	"github.com/newthinker/tradesim/internal/alert"
	"github.com/newthinker/tradesim/internal/core"
)

// Metric names usable in alert rules.
const (
	MetricDrawdown   = "drawdown"
	MetricVolatility = "volatility"
	MetricExposure   = "exposure"
	MetricScore      = "score"
	MetricEquity     = "equity"
)

// Weights of each normalised metric in the composite score.
type Weights struct {
	Drawdown   float64 `mapstructure:"drawdown" json:"drawdown"`
	Volatility float64 `mapstructure:"volatility" json:"volatility"`
	Exposure   float64 `mapstructure:"exposure" json:"exposure"`
}

func (w Weights) sum() float64 {
	return w.Drawdown + w.Volatility + w.Exposure
}

// normalized scales the weights to sum to 1.
func (w Weights) normalized() Weights {
	total := w.sum()
	return Weights{
		Drawdown:   w.Drawdown / total,
		Volatility: w.Volatility / total,
		Exposure:   w.Exposure / total,
	}
}

// Config configures a risk engine.
type Config struct {
	// Window is the number of trailing returns used for volatility.
	Window  int     `mapstructure:"window" json:"window"`
	Weights Weights `mapstructure:"weights" json:"weights"`
	// VolatilityCap is the per-period volatility that scores as fully risky.
	VolatilityCap float64      `mapstructure:"volatility_cap" json:"volatility_cap"`
	Rules         []alert.Rule `mapstructure:"rules" json:"rules,omitempty"`
}

// DefaultConfig returns a 20-period window weighted towards drawdown.
func DefaultConfig() Config {
	return Config{
		Window:        20,
		Weights:       Weights{Drawdown: 0.5, Volatility: 0.3, Exposure: 0.2},
		VolatilityCap: 0.05,
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if c.Window < 2 {
		return core.Errorf(core.ErrConfigInvalid, "risk window must be at least 2, got %d", c.Window)
	}
	w := c.Weights
	if w.Drawdown < 0 || w.Volatility < 0 || w.Exposure < 0 {
		return core.Errorf(core.ErrConfigInvalid, "risk weights must not be negative: %+v", w)
	}
	if w.sum() <= 0 {
		return core.Errorf(core.ErrConfigInvalid, "risk weights must sum to a positive value")
	}
	if c.VolatilityCap <= 0 {
		return core.Errorf(core.ErrConfigInvalid, "volatility cap must be positive, got %g", c.VolatilityCap)
	}
	for _, r := range c.Rules {
		if _, err := r.Normalize(); err != nil {
			return err
		}
	}
	return nil
}
