package strategy

import (
	"fmt"
	"time"

	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/series"
)

// Replay re-emits a recorded intent stream, keyed by bar time.
// Running a backtest with Replay reproduces the recorded run exactly.
type Replay struct {
	intents map[int64][]core.TradeIntent
}

// NewReplay builds a Replay from intents grouped by bar time.
func NewReplay(intents map[time.Time][]core.TradeIntent) *Replay {
	r := &Replay{intents: make(map[int64][]core.TradeIntent, len(intents))}
	for t, in := range intents {
		r.intents[t.UnixNano()] = append([]core.TradeIntent(nil), in...)
	}
	return r
}

// ReplayFromLog reconstructs the intent stream from a trade log, including
// intents that were rejected.
func ReplayFromLog(log []core.TradeLogEntry) *Replay {
	r := &Replay{intents: make(map[int64][]core.TradeIntent)}
	for _, e := range log {
		var in core.TradeIntent
		switch {
		case e.Fill != nil:
			in = core.TradeIntent{Side: e.Fill.Side, Symbol: e.Fill.Symbol, Quantity: e.Fill.Quantity, Reason: e.Fill.Reason}
		case e.Rejection != nil:
			in = e.Rejection.Intent
		default:
			continue
		}
		key := e.Time().UnixNano()
		r.intents[key] = append(r.intents[key], in)
	}
	return r
}

func (r *Replay) Name() string { return "replay" }

func (r *Replay) Description() string {
	return fmt.Sprintf("Replay (%d bars with intents)", len(r.intents))
}

func (r *Replay) Lookback() int { return 1 }

func (r *Replay) Init(cfg Config) error { return nil }

func (r *Replay) Decide(window series.Window, _ core.PortfolioSnapshot) ([]core.TradeIntent, error) {
	if window.Len() == 0 {
		return nil, nil
	}
	recorded := r.intents[window.Last().Time.UnixNano()]
	if len(recorded) == 0 {
		return nil, nil
	}
	return append([]core.TradeIntent(nil), recorded...), nil
}
