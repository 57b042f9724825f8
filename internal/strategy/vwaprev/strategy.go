// Package vwaprev generates mean-reversion signals around a rolling
// VWAP band.
package vwaprev

import (
	"fmt"
	"math"

	"github.com/hindsightlab/hindsight/internal/core"
	"github.com/hindsightlab/hindsight/internal/indicator"
	"github.com/hindsightlab/hindsight/internal/strategy"
)

const (
	defaultLookback  = 50
	defaultDeviation = 0.01
)

// VWAPRev buys when the close drops more than the deviation fraction
// below the rolling VWAP and sells when it rises the same fraction
// above it, betting on reversion to the volume-weighted mean.
type VWAPRev struct {
	lookback  int
	deviation float64
}

// New creates a VWAP reversion generator.
func New(lookback int, deviation float64) *VWAPRev {
	if lookback < 1 {
		lookback = defaultLookback
	}
	if deviation <= 0 {
		deviation = defaultDeviation
	}
	return &VWAPRev{lookback: lookback, deviation: deviation}
}

func (v *VWAPRev) Name() string {
	return "vwap_reversion"
}

func (v *VWAPRev) Description() string {
	return fmt.Sprintf("VWAP reversion (lookback %d, deviation %.2f%%)", v.lookback, v.deviation*100)
}

func (v *VWAPRev) MinBars() int {
	return v.lookback
}

func (v *VWAPRev) Init(cfg strategy.Config) error {
	v.lookback = strategy.IntParam(cfg.Params, "lookback", v.lookback)
	v.deviation = strategy.FloatParam(cfg.Params, "deviation", v.deviation)
	if v.lookback < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("vwap_reversion lookback must be positive, got %d", v.lookback))
	}
	if v.deviation <= 0 || v.deviation >= 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("vwap_reversion deviation must be in (0, 1), got %f", v.deviation))
	}
	return nil
}

func (v *VWAPRev) Annotate(bars []core.Bar) ([]core.Bar, error) {
	if len(bars) < v.MinBars() {
		return nil, core.WrapError(core.ErrInsufficientData,
			fmt.Errorf("vwap_reversion needs %d bars, got %d", v.MinBars(), len(bars)))
	}

	n := len(bars)
	high := make([]float64, n)
	low := make([]float64, n)
	closes := make([]float64, n)
	volume := make([]float64, n)
	for i, b := range bars {
		high[i] = b.High
		low[i] = b.Low
		closes[i] = b.Close
		volume[i] = b.Volume
	}
	vwap := indicator.RollingVWAP(high, low, closes, volume, v.lookback)

	out := make([]core.Bar, n)
	copy(out, bars)
	for i := range out {
		out[i].Signal = core.SignalHold
		if math.IsNaN(vwap[i]) {
			continue
		}
		if out[i].Close < vwap[i]*(1-v.deviation) {
			out[i].Signal = core.SignalBuy
		} else if out[i].Close > vwap[i]*(1+v.deviation) {
			out[i].Signal = core.SignalSell
		}
	}
	return out, nil
}
