// Package indicator implements technical indicators over closing prices.
package indicator

import (
	"fmt"
	"strings"
)

// Average names a moving average kind.
type Average string

const (
	Simple      Average = "sma"
	Exponential Average = "ema"
)

// ParseAverage accepts "sma" or "ema" in any case. Empty means Simple.
func ParseAverage(s string) (Average, error) {
	switch a := Average(strings.ToLower(strings.TrimSpace(s))); a {
	case "":
		return Simple, nil
	case Simple, Exponential:
		return a, nil
	default:
		return "", fmt.Errorf("unknown moving average %q", s)
	}
}

// Moving computes the average of kind a over closes. The output holds one
// value per full window, so it is len(closes)-period+1 long, or empty when
// closes is shorter than period.
func (a Average) Moving(closes []float64, period int) []float64 {
	if a == Exponential {
		return EMA(closes, period)
	}
	return SMA(closes, period)
}

// SMA is the rolling arithmetic mean over period closes.
func SMA(closes []float64, period int) []float64 {
	seed, ok := seedMean(closes, period)
	if !ok {
		return nil
	}
	out := make([]float64, 1, len(closes)-period+1)
	out[0] = seed

	n := float64(period)
	sum := seed * n
	for i, c := range closes[period:] {
		sum += c - closes[i]
		out = append(out, sum/n)
	}
	return out
}

// EMA seeds with the SMA of the first period closes, then smooths with
// alpha = 2/(period+1).
func EMA(closes []float64, period int) []float64 {
	seed, ok := seedMean(closes, period)
	if !ok {
		return nil
	}
	out := make([]float64, 1, len(closes)-period+1)
	out[0] = seed

	alpha := 2 / float64(period+1)
	prev := seed
	for _, c := range closes[period:] {
		prev += alpha * (c - prev)
		out = append(out, prev)
	}
	return out
}

func seedMean(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period {
		return 0, false
	}
	var sum float64
	for _, c := range closes[:period] {
		sum += c
	}
	return sum / float64(period), true
}
