package indicator

// RollingVWAP calculates the volume-weighted average of the typical
// price (high+low+close)/3 over a rolling window. Windows with zero
// total volume have no defined value.
func RollingVWAP(high, low, close, volume []float64, period int) []float64 {
	n := len(close)
	result := nanSlice(n)
	if period < 1 || n < period || len(high) != n || len(low) != n || len(volume) != n {
		return result
	}

	var pvSum, volSum float64
	for i := 0; i < n; i++ {
		tp := (high[i] + low[i] + close[i]) / 3
		pvSum += tp * volume[i]
		volSum += volume[i]
		if i >= period {
			old := (high[i-period] + low[i-period] + close[i-period]) / 3
			pvSum -= old * volume[i-period]
			volSum -= volume[i-period]
		}
		if i >= period-1 && volSum > 0 {
			result[i] = pvSum / volSum
		}
	}

	return result
}
