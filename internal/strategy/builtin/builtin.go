// Package builtin registers the strategies shipped with tradesim.
package builtin

import (
	"github.com/newthinker/tradesim/internal/strategy"
	"github.com/newthinker/tradesim/internal/strategy/ma_crossover"
	"github.com/newthinker/tradesim/internal/strategy/noop"
	"github.com/newthinker/tradesim/internal/strategy/rsi"
	"go.uber.org/zap"
)

// Registry returns a registry with every built-in strategy registered.
func Registry(logger *zap.Logger) *strategy.Registry {
	r := strategy.NewRegistry(logger)
	r.MustRegister(ma_crossover.Factory)
	r.MustRegister(rsi.Factory)
	r.MustRegister(noop.Factory)
	return r
}
