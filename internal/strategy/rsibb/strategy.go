// Package rsibb generates signals from RSI confirmed by Bollinger
// band touches.
package rsibb

import (
	"fmt"
	"math"

	"github.com/hindsightlab/hindsight/internal/core"
	"github.com/hindsightlab/hindsight/internal/indicator"
	"github.com/hindsightlab/hindsight/internal/strategy"
)

const (
	defaultRSIPeriod  = 14
	defaultBBPeriod   = 20
	defaultBBStdDev   = 2.0
	defaultOversold   = 30.0
	defaultOverbought = 70.0
)

// RSIBB buys when RSI is oversold while the close sits at or below
// the lower Bollinger band, and sells on the mirrored condition at
// the upper band. Both indicators must agree; either one alone reads
// hold.
type RSIBB struct {
	rsiPeriod  int
	bbPeriod   int
	bbStdDev   float64
	oversold   float64
	overbought float64
}

// New creates an RSI + Bollinger generator with default thresholds.
func New(rsiPeriod, bbPeriod int, bbStdDev float64) *RSIBB {
	if rsiPeriod < 1 {
		rsiPeriod = defaultRSIPeriod
	}
	if bbPeriod < 1 {
		bbPeriod = defaultBBPeriod
	}
	if bbStdDev <= 0 {
		bbStdDev = defaultBBStdDev
	}
	return &RSIBB{
		rsiPeriod:  rsiPeriod,
		bbPeriod:   bbPeriod,
		bbStdDev:   bbStdDev,
		oversold:   defaultOversold,
		overbought: defaultOverbought,
	}
}

func (r *RSIBB) Name() string {
	return "rsi_bb"
}

func (r *RSIBB) Description() string {
	return fmt.Sprintf("RSI(%d) + Bollinger(%d, %.1f)", r.rsiPeriod, r.bbPeriod, r.bbStdDev)
}

func (r *RSIBB) MinBars() int {
	if r.rsiPeriod+1 > r.bbPeriod {
		return r.rsiPeriod + 1
	}
	return r.bbPeriod
}

func (r *RSIBB) Init(cfg strategy.Config) error {
	r.rsiPeriod = strategy.IntParam(cfg.Params, "rsi_period", r.rsiPeriod)
	r.bbPeriod = strategy.IntParam(cfg.Params, "bb_period", r.bbPeriod)
	r.bbStdDev = strategy.FloatParam(cfg.Params, "bb_std_dev", r.bbStdDev)
	r.oversold = strategy.FloatParam(cfg.Params, "oversold", r.oversold)
	r.overbought = strategy.FloatParam(cfg.Params, "overbought", r.overbought)

	if r.rsiPeriod < 1 || r.bbPeriod < 1 || r.bbStdDev <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("rsi_bb parameters out of range: rsi=%d bb=%d k=%f",
				r.rsiPeriod, r.bbPeriod, r.bbStdDev))
	}
	if r.oversold >= r.overbought {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("rsi_bb oversold %.1f must be below overbought %.1f",
				r.oversold, r.overbought))
	}
	return nil
}

func (r *RSIBB) Annotate(bars []core.Bar) ([]core.Bar, error) {
	if len(bars) < r.MinBars() {
		return nil, core.WrapError(core.ErrInsufficientData,
			fmt.Errorf("rsi_bb needs %d bars, got %d", r.MinBars(), len(bars)))
	}

	closes := strategy.Closes(bars)
	rsi := indicator.RSI(closes, r.rsiPeriod)
	bands := indicator.Bollinger(closes, r.bbPeriod, r.bbStdDev)

	out := make([]core.Bar, len(bars))
	copy(out, bars)
	for i := range out {
		out[i].Signal = core.SignalHold
		if math.IsNaN(rsi[i]) || math.IsNaN(bands.Lower[i]) {
			continue
		}
		if rsi[i] < r.oversold && out[i].Close <= bands.Lower[i] {
			out[i].Signal = core.SignalBuy
		} else if rsi[i] > r.overbought && out[i].Close >= bands.Upper[i] {
			out[i].Signal = core.SignalSell
		}
	}
	return out, nil
}
