package backtest

import (
	"time"
)

// Trade represents one completed round trip from entry to exit
type Trade struct {
	Symbol          string
	Strategy        string
	EntryTime       time.Time
	EntryPrice      float64 // observed close at entry
	ExitTime        time.Time
	ExitPrice       float64 // observed close at exit
	Return          float64 // realized fraction, net of fees and slippage
	Duration        time.Duration
	ClosedAtHorizon bool // force-closed at the end of the series
}

// IsWin returns true if the trade was profitable
func (t Trade) IsWin() bool {
	return t.Return > 0
}

// EquityPoint is one sample of the portfolio value over time.
type EquityPoint struct {
	Time   time.Time
	Equity float64
}

// Result holds the simulator output for one (symbol, strategy) run
type Result struct {
	Symbol         string
	Strategy       string
	Trades         []Trade
	Curve          []EquityPoint
	Bars           int
	BarsInPosition int
}

// SimConfig controls the trade simulation. The zero value means
// capital 1.0, all-in sizing, no fees, no slippage.
type SimConfig struct {
	InitialCapital   float64
	PositionFraction float64
	FeeRate          float64 // charged on each side's notional
	SlippageRate     float64 // buys fill above close, sells below
}

func (c SimConfig) withDefaults() SimConfig {
	if c.InitialCapital <= 0 {
		c.InitialCapital = 1.0
	}
	if c.PositionFraction <= 0 || c.PositionFraction > 1 {
		c.PositionFraction = 1.0
	}
	if c.FeeRate < 0 {
		c.FeeRate = 0
	}
	if c.SlippageRate < 0 {
		c.SlippageRate = 0
	}
	return c
}

// Summary holds aggregate performance statistics for one run
type Summary struct {
	Symbol         string
	Strategy       string
	TotalReturn    float64 // curve end over curve start, minus one
	NumTrades      int
	WinRate        float64 // fraction of profitable trades in [0, 1]
	AvgReturn      float64 // arithmetic mean of trade returns
	MaxDrawdown    float64 // largest peak-to-trough decline of the curve
	SharpeRatio    float64 // annualized, zero risk-free rate
	ProfitFactor   float64 // gross wins over gross losses, +Inf when lossless
	Exposure       float64 // fraction of bars spent in position
	AvgDuration    time.Duration
	MedianDuration time.Duration
	MaxDuration    time.Duration
	MinDuration    time.Duration
}
