package series

import (
	"github.com/newthinker/tradesim/internal/core"
)

// Window is a read-only view over consecutive bars.
type Window struct {
	bars []core.Bar
}

// Len returns the number of bars in the window.
func (w Window) Len() int { return len(w.bars) }

// At returns the bar at index i.
func (w Window) At(i int) core.Bar { return w.bars[i] }

// Last returns the newest bar. It panics on an empty window.
func (w Window) Last() core.Bar { return w.bars[len(w.bars)-1] }

// Symbol returns the window's symbol, or "" when empty.
func (w Window) Symbol() string {
	if len(w.bars) == 0 {
		return ""
	}
	return w.bars[0].Symbol
}

// Closes extracts closing prices as float64 for indicator math.
func (w Window) Closes() []float64 {
	closes := make([]float64, len(w.bars))
	for i, b := range w.bars {
		closes[i] = b.Close.InexactFloat64()
	}
	return closes
}
