// Package noop provides a baseline strategy that never trades.
package noop

import (
	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/series"
	"github.com/newthinker/tradesim/internal/strategy"
)

type Noop struct{}

func New() *Noop { return &Noop{} }

func Factory() strategy.Strategy { return New() }

func (Noop) Name() string                   { return "noop" }
func (Noop) Description() string            { return "No-op baseline" }
func (Noop) Lookback() int                  { return 1 }
func (Noop) Init(cfg strategy.Config) error { return nil }

func (Noop) Decide(series.Window, core.PortfolioSnapshot) ([]core.TradeIntent, error) {
	return nil, nil
}
