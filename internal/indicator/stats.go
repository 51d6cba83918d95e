package indicator

import "math"

// Returns calculates period-over-period simple returns.
// Returns slice of length: len(values) - 1. A zero previous value yields a 0 return.
func Returns(values []float64) []float64 {
	if len(values) < 2 {
		return []float64{}
	}

	result := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		prev := values[i-1]
		if prev == 0 {
			result = append(result, 0)
			continue
		}
		result = append(result, (values[i]-prev)/prev)
	}
	return result
}

// Mean returns the arithmetic mean, or 0 for empty input.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the sample standard deviation.
// Fewer than two values have no dispersion and yield 0.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	mean := Mean(values)
	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return math.Sqrt(variance / float64(len(values)-1))
}

// Drawdown is the fractional decline of current from peak, clamped to [0, 1].
// A non-positive peak has no meaningful drawdown and yields 0.
func Drawdown(peak, current float64) float64 {
	if peak <= 0 {
		return 0
	}
	dd := (peak - current) / peak
	return math.Max(0, math.Min(1, dd))
}

// Drawdowns tracks the running peak and returns the drawdown at every point.
func Drawdowns(equity []float64) []float64 {
	result := make([]float64, len(equity))
	peak := math.Inf(-1)
	for i, eq := range equity {
		peak = math.Max(peak, eq)
		result[i] = Drawdown(peak, eq)
	}
	return result
}

// MaxDrawdown finds the largest peak-to-trough decline.
func MaxDrawdown(equity []float64) float64 {
	var maxDD float64
	for _, dd := range Drawdowns(equity) {
		maxDD = math.Max(maxDD, dd)
	}
	return maxDD
}
