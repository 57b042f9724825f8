package indicator

import "math"

// RSI calculates the Relative Strength Index with Wilder smoothing.
// Values range 0 to 100; the first period positions are warm-up.
func RSI(prices []float64, period int) []float64 {
	result := nanSlice(len(prices))
	if period < 1 || len(prices) <= period {
		return result
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss += -change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	result[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		var gain, loss float64
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		result[i] = rsiValue(avgGain, avgLoss)
	}

	return result
}

// rsiValue follows the gain/loss ratio convention: a lossless window
// reads 100, a changeless window has no defined value.
func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return math.NaN()
		}
		return 100
	}
	return 100 - 100/(1+avgGain/avgLoss)
}
