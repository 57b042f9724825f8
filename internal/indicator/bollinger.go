package indicator

import "math"

// StdDev calculates the rolling population standard deviation.
func StdDev(prices []float64, period int) []float64 {
	result := nanSlice(len(prices))
	if period < 1 || len(prices) < period {
		return result
	}

	for i := period - 1; i < len(prices); i++ {
		window := prices[i-period+1 : i+1]

		var sum float64
		for _, p := range window {
			sum += p
		}
		mean := sum / float64(period)

		var variance float64
		for _, p := range window {
			variance += (p - mean) * (p - mean)
		}
		result[i] = math.Sqrt(variance / float64(period))
	}

	return result
}

// Bands holds Bollinger band series aligned to the input prices.
type Bands struct {
	Middle []float64
	Upper  []float64
	Lower  []float64
}

// Bollinger calculates Bollinger Bands: a middle SMA with upper and
// lower bands k standard deviations away.
func Bollinger(prices []float64, period int, k float64) Bands {
	middle := SMA(prices, period)
	std := StdDev(prices, period)

	upper := nanSlice(len(prices))
	lower := nanSlice(len(prices))
	for i := range prices {
		if !math.IsNaN(middle[i]) && !math.IsNaN(std[i]) {
			upper[i] = middle[i] + k*std[i]
			lower[i] = middle[i] - k*std[i]
		}
	}

	return Bands{Middle: middle, Upper: upper, Lower: lower}
}
