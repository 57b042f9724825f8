package core

import "time"

// Signal is a per-bar trading instruction attached by a strategy.
type Signal string

const (
	SignalBuy  Signal = "buy"
	SignalSell Signal = "sell"
	SignalHold Signal = "hold"
)

// Valid reports whether s is one of the known signal values.
func (s Signal) Valid() bool {
	switch s {
	case SignalBuy, SignalSell, SignalHold:
		return true
	}
	return false
}

// Interval identifies the bar spacing of a series.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval1d  Interval = "1d"
)

// Duration returns the wall-clock length of one bar, or 0 for an
// unrecognized interval.
func (i Interval) Duration() time.Duration {
	switch i {
	case Interval1m:
		return time.Minute
	case Interval5m:
		return 5 * time.Minute
	case Interval15m:
		return 15 * time.Minute
	case Interval1h:
		return time.Hour
	case Interval4h:
		return 4 * time.Hour
	case Interval1d:
		return 24 * time.Hour
	}
	return 0
}

// Bar is one OHLCV observation, optionally annotated with a Signal
// by the strategy layer. Bars for one symbol are sorted strictly by
// Time with no duplicates.
type Bar struct {
	Symbol string
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Signal Signal
}

// IsValid checks if the bar has required fields.
func (b Bar) IsValid() bool {
	return b.Symbol != "" && !b.Time.IsZero() &&
		b.Open > 0 && b.High > 0 && b.Low > 0 && b.Close > 0 &&
		b.Volume >= 0
}
