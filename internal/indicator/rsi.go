package indicator

// RSI calculates the Relative Strength Index using Wilder's smoothing.
// Returns slice of length: len(prices) - period, each value in [0, 100].
func RSI(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) <= period {
		return []float64{}
	}

	result := make([]float64, 0, len(prices)-period)

	// Seed with simple averages of the first period changes
	var gain, loss float64
	for i := 1; i <= period; i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gain += change
		} else {
			loss -= change
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	result = append(result, rsiValue(avgGain, avgLoss))

	for i := period + 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		var g, l float64
		if change > 0 {
			g = change
		} else {
			l = -change
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
		result = append(result, rsiValue(avgGain, avgLoss))
	}

	return result
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}
