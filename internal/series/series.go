// Package series provides the immutable, validated bar series that every
// backtest replays.
package series

import (
	"iter"

	"github.com/newthinker/tradesim/internal/core"
)

// Series is an ordered, validated sequence of bars for one symbol.
// A Series is never mutated after Load; slices share storage with their parent.
type Series struct {
	symbol string
	bars   []core.Bar
}

// Load validates bars and returns a Series owning a private copy of them.
func Load(bars []core.Bar) (*Series, error) {
	if len(bars) == 0 {
		return nil, core.WrapError(core.ErrValidation, core.ErrNoData)
	}
	if err := Validate(bars); err != nil {
		return nil, err
	}

	owned := make([]core.Bar, len(bars))
	copy(owned, bars)

	return &Series{symbol: owned[0].Symbol, bars: owned}, nil
}

// Symbol returns the symbol shared by every bar.
func (s *Series) Symbol() string { return s.symbol }

// Len returns the number of bars.
func (s *Series) Len() int { return len(s.bars) }

// At returns the bar at index i.
func (s *Series) At(i int) core.Bar { return s.bars[i] }

// First returns the earliest bar.
func (s *Series) First() core.Bar { return s.bars[0] }

// Last returns the latest bar.
func (s *Series) Last() core.Bar { return s.bars[len(s.bars)-1] }

// Bars returns a read-only window over every bar.
func (s *Series) Bars() Window { return s.Window(0, len(s.bars)) }

// All iterates bars in timestamp order.
func (s *Series) All() iter.Seq2[int, core.Bar] {
	return func(yield func(int, core.Bar) bool) {
		for i, b := range s.bars {
			if !yield(i, b) {
				return
			}
		}
	}
}

// Slice returns the read-only view [from, to) sharing storage with s.
func (s *Series) Slice(from, to int) (*Series, error) {
	if from < 0 || to > len(s.bars) || from >= to {
		return nil, core.Errorf(core.ErrValidation, "slice [%d,%d) out of range for %d bars", from, to, len(s.bars))
	}
	// Clip capacity so an append on the view can never write into the parent.
	return &Series{symbol: s.symbol, bars: s.bars[from:to:to]}, nil
}

// Window returns the bars [from, to) as a window.
func (s *Series) Window(from, to int) Window {
	return Window{bars: s.bars[from:to:to]}
}

// Trailing returns up to n bars ending at index end (inclusive).
// Near the start of the series the window is shorter than n.
func (s *Series) Trailing(end, n int) Window {
	if n <= 0 {
		n = 1
	}
	start := max(0, end-n+1)
	return s.Window(start, end+1)
}

// Windowed yields every full sliding window of n bars, oldest first.
// The sequence is lazy, finite and may be ranged over repeatedly.
func (s *Series) Windowed(n int) iter.Seq[Window] {
	return func(yield func(Window) bool) {
		if n <= 0 || n > len(s.bars) {
			return
		}
		for end := n; end <= len(s.bars); end++ {
			if !yield(s.Window(end-n, end)) {
				return
			}
		}
	}
}
