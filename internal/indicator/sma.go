// Package indicator provides rolling price-series transforms. Every
// function returns a slice aligned to its input: positions before one
// full period of data hold NaN, so comparing a warm-up value against
// anything is always false.
package indicator

import "math"

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

// SMA calculates Simple Moving Average
func SMA(prices []float64, period int) []float64 {
	result := nanSlice(len(prices))
	if period < 1 || len(prices) < period {
		return result
	}

	var sum float64
	for i, p := range prices {
		sum += p
		if i >= period {
			sum -= prices[i-period]
		}
		if i >= period-1 {
			result[i] = sum / float64(period)
		}
	}

	return result
}

// EMA calculates Exponential Moving Average, seeded with the SMA of
// the first period.
func EMA(prices []float64, period int) []float64 {
	result := nanSlice(len(prices))
	if period < 1 || len(prices) < period {
		return result
	}

	multiplier := 2.0 / float64(period+1)

	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	ema := sum / float64(period)
	result[period-1] = ema

	for i := period; i < len(prices); i++ {
		ema = (prices[i]-ema)*multiplier + ema
		result[i] = ema
	}

	return result
}
