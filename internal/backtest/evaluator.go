package backtest

import (
	"math"
	"sort"
	"time"
)

// Crypto markets trade around the clock, so a year is 365 full days
// of bars when annualizing.
const yearDuration = 365 * 24 * time.Hour

// EvalOptions controls which trades count toward trade-level metrics.
// The zero value includes every trade, horizon-closed ones too.
type EvalOptions struct {
	ExcludeHorizonTrades bool
}

// Evaluate reduces a simulation result into a Summary. Metric edge
// cases are zero-value contracts, not errors: zero trades means a win
// rate, average return and profit factor of 0.0; an empty or
// non-decreasing curve means zero drawdown.
func Evaluate(res *Result, opts EvalOptions) Summary {
	s := Summary{Symbol: res.Symbol, Strategy: res.Strategy}

	trades := res.Trades
	if opts.ExcludeHorizonTrades {
		trades = settledTrades(trades)
	}

	s.TotalReturn = totalReturn(res.Curve)
	s.MaxDrawdown = maxDrawdown(res.Curve)
	s.SharpeRatio = sharpeRatio(res.Curve)
	if res.Bars > 0 {
		s.Exposure = float64(res.BarsInPosition) / float64(res.Bars)
	}

	s.NumTrades = len(trades)
	if len(trades) == 0 {
		return s
	}

	var wins int
	var sum, grossWin, grossLoss float64
	durations := make([]time.Duration, 0, len(trades))
	for _, t := range trades {
		sum += t.Return
		if t.IsWin() {
			wins++
			grossWin += t.Return
		} else if t.Return < 0 {
			grossLoss += -t.Return
		}
		durations = append(durations, t.Duration)
	}

	s.WinRate = float64(wins) / float64(len(trades))
	s.AvgReturn = sum / float64(len(trades))
	s.ProfitFactor = profitFactor(grossWin, grossLoss)

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	s.MinDuration = durations[0]
	s.MaxDuration = durations[len(durations)-1]
	s.MedianDuration = medianDuration(durations)
	var total time.Duration
	for _, d := range durations {
		total += d
	}
	s.AvgDuration = total / time.Duration(len(durations))

	return s
}

// settledTrades filters out horizon-closed trades
func settledTrades(trades []Trade) []Trade {
	out := make([]Trade, 0, len(trades))
	for _, t := range trades {
		if !t.ClosedAtHorizon {
			out = append(out, t)
		}
	}
	return out
}

// totalReturn is the compounded return implied by the equity curve
func totalReturn(curve []EquityPoint) float64 {
	if len(curve) == 0 || curve[0].Equity == 0 {
		return 0
	}
	return curve[len(curve)-1].Equity/curve[0].Equity - 1
}

// maxDrawdown scans the curve left to right maintaining a running peak
func maxDrawdown(curve []EquityPoint) float64 {
	var maxDD, peak float64
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			if dd := (peak - p.Equity) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// sharpeRatio computes the annualized risk-adjusted return from the
// per-bar curve returns, assuming a zero risk-free rate. Bar spacing
// is inferred from the first two curve points. Fewer than three
// points give a single return with no sample deviation, so the ratio
// is 0.
func sharpeRatio(curve []EquityPoint) float64 {
	if len(curve) < 3 {
		return 0
	}
	barDur := curve[1].Time.Sub(curve[0].Time)
	if barDur <= 0 {
		return 0
	}

	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			return 0
		}
		returns = append(returns, curve[i].Equity/prev-1)
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	stdDev := math.Sqrt(variance / float64(len(returns)-1))
	if stdDev == 0 {
		return 0
	}

	periodsPerYear := float64(yearDuration) / float64(barDur)
	return mean / stdDev * math.Sqrt(periodsPerYear)
}

// profitFactor is gross wins over gross losses. A run with wins and
// no losses returns +Inf; the table projection renders that as "inf"
// so serializers never see a non-finite value.
func profitFactor(grossWin, grossLoss float64) float64 {
	if grossLoss == 0 {
		if grossWin > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return grossWin / grossLoss
}

// medianDuration expects a sorted slice
func medianDuration(sorted []time.Duration) time.Duration {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
