package backtest

import (
	"fmt"
	"time"

	"github.com/hindsightlab/hindsight/internal/core"
)

// position tracks the single open holding during a simulation
type position struct {
	entryTime  time.Time
	entryPrice float64 // observed close at entry
	fillPrice  float64 // entry price after slippage
}

// markReturn is the net return the position would realize if closed
// at the given price, including both sides' fees and slippage.
func (p *position) markReturn(price float64, cfg SimConfig) float64 {
	exitFill := price * (1 - cfg.SlippageRate)
	gross := exitFill / p.fillPrice
	return gross*(1-cfg.FeeRate)*(1-cfg.FeeRate) - 1
}

func (p *position) close(strategy string, bar core.Bar, cfg SimConfig, horizon bool) Trade {
	return Trade{
		Symbol:          bar.Symbol,
		Strategy:        strategy,
		EntryTime:       p.entryTime,
		EntryPrice:      p.entryPrice,
		ExitTime:        bar.Time,
		ExitPrice:       bar.Close,
		Return:          p.markReturn(bar.Close, cfg),
		Duration:        bar.Time.Sub(p.entryTime),
		ClosedAtHorizon: horizon,
	}
}

// Simulate walks an annotated bar series in timestamp order and emits
// the trades a single long-only position would have produced, plus a
// per-bar equity curve.
//
// The state machine has two states, flat and long. A buy signal while
// flat opens a position at the bar close; a sell signal while long
// closes it and emits a Trade. Redundant signals (buy while long,
// sell while flat) and hold signals are dropped, never queued. A
// position still open after the last bar is force-closed at the final
// close and flagged ClosedAtHorizon.
//
// The curve is sampled at every bar: the last realized equity while
// flat, entry-scaled mark-to-market while long. Same input always
// yields the same output.
func Simulate(bars []core.Bar, strategy string, cfg SimConfig) (*Result, error) {
	cfg = cfg.withDefaults()

	var symbol string
	if len(bars) > 0 {
		symbol = bars[0].Symbol
	}

	if err := validateBars(symbol, bars); err != nil {
		return nil, err
	}

	res := &Result{
		Symbol:   symbol,
		Strategy: strategy,
		Bars:     len(bars),
	}

	if len(bars) == 0 {
		// An empty series is not an error: no trades, one curve
		// point at the initial capital.
		res.Curve = []EquityPoint{{Equity: cfg.InitialCapital}}
		return res, nil
	}

	equity := cfg.InitialCapital // realized value, updated on close
	res.Curve = make([]EquityPoint, 0, len(bars))
	var pos *position

	for _, bar := range bars {
		switch bar.Signal {
		case core.SignalBuy:
			if pos == nil {
				pos = &position{
					entryTime:  bar.Time,
					entryPrice: bar.Close,
					fillPrice:  bar.Close * (1 + cfg.SlippageRate),
				}
			}
		case core.SignalSell:
			if pos != nil {
				trade := pos.close(strategy, bar, cfg, false)
				equity *= 1 + cfg.PositionFraction*trade.Return
				res.Trades = append(res.Trades, trade)
				pos = nil
			}
		case core.SignalHold:
		}

		point := EquityPoint{Time: bar.Time, Equity: equity}
		if pos != nil {
			res.BarsInPosition++
			point.Equity = equity * (1 + cfg.PositionFraction*pos.markReturn(bar.Close, cfg))
		}
		res.Curve = append(res.Curve, point)
	}

	if pos != nil {
		trade := pos.close(strategy, bars[len(bars)-1], cfg, true)
		equity *= 1 + cfg.PositionFraction*trade.Return
		res.Trades = append(res.Trades, trade)
		// The final point reflects the realized close-out.
		res.Curve[len(res.Curve)-1].Equity = equity
	}

	return res, nil
}

// validateBars fails fast on out-of-domain input so the simulator
// never produces a partial trade list from a malformed series.
func validateBars(symbol string, bars []core.Bar) error {
	for i, bar := range bars {
		if !bar.Signal.Valid() {
			return core.WrapError(core.ErrInvalidData,
				fmt.Errorf("%s: bar %d: unknown signal %q", symbol, i, bar.Signal))
		}
		if bar.Open <= 0 || bar.High <= 0 || bar.Low <= 0 || bar.Close <= 0 {
			return core.WrapError(core.ErrInvalidData,
				fmt.Errorf("%s: bar %d: non-positive price", symbol, i))
		}
		if bar.Volume < 0 {
			return core.WrapError(core.ErrInvalidData,
				fmt.Errorf("%s: bar %d: negative volume %f", symbol, i, bar.Volume))
		}
		if i > 0 && !bar.Time.After(bars[i-1].Time) {
			return core.WrapError(core.ErrInvalidData,
				fmt.Errorf("%s: bar %d: timestamp %s not after previous bar",
					symbol, i, bar.Time.Format(time.RFC3339)))
		}
	}
	return nil
}
