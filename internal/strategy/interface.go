package strategy

import (
	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/series"
)

// Config holds strategy configuration
type Config struct {
	Params map[string]any `mapstructure:"params" json:"params,omitempty"`
}

// Strategy maps a window of bars and a read-only portfolio snapshot to trade intents.
//
// Decide must be a pure function of its arguments: the same window and snapshot
// always yield the same intents. Strategies never mutate the ledger.
type Strategy interface {
	Name() string
	Description() string
	// Lookback is the number of trailing bars Decide wants to see.
	Lookback() int
	Init(cfg Config) error
	Decide(window series.Window, portfolio core.PortfolioSnapshot) ([]core.TradeIntent, error)
}

// Factory creates a fresh, uninitialised strategy instance.
type Factory func() Strategy
