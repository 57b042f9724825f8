// Package smacross generates signals from a fast/slow simple moving
// average crossover.
package smacross

import (
	"fmt"
	"math"

	"github.com/hindsightlab/hindsight/internal/core"
	"github.com/hindsightlab/hindsight/internal/indicator"
	"github.com/hindsightlab/hindsight/internal/strategy"
)

const (
	defaultFastPeriod = 10
	defaultSlowPeriod = 50
)

// SMACross emits buy while the fast SMA is above the slow SMA and
// sell while it is below. The signal is a level, not an edge: the
// simulator's redundancy rule collapses the repeats into one entry
// and one exit per crossing.
type SMACross struct {
	fastPeriod int
	slowPeriod int
}

// New creates an SMA crossover generator with the given periods.
func New(fastPeriod, slowPeriod int) *SMACross {
	if fastPeriod < 1 {
		fastPeriod = defaultFastPeriod
	}
	if slowPeriod < 1 {
		slowPeriod = defaultSlowPeriod
	}
	return &SMACross{fastPeriod: fastPeriod, slowPeriod: slowPeriod}
}

func (s *SMACross) Name() string {
	return "sma_cross"
}

func (s *SMACross) Description() string {
	return fmt.Sprintf("SMA crossover (%d/%d)", s.fastPeriod, s.slowPeriod)
}

func (s *SMACross) MinBars() int {
	return s.slowPeriod
}

func (s *SMACross) Init(cfg strategy.Config) error {
	s.fastPeriod = strategy.IntParam(cfg.Params, "fast_period", s.fastPeriod)
	s.slowPeriod = strategy.IntParam(cfg.Params, "slow_period", s.slowPeriod)
	if s.fastPeriod < 1 || s.slowPeriod < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("sma_cross periods must be positive, got %d/%d", s.fastPeriod, s.slowPeriod))
	}
	if s.fastPeriod >= s.slowPeriod {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("sma_cross fast period %d must be below slow period %d", s.fastPeriod, s.slowPeriod))
	}
	return nil
}

func (s *SMACross) Annotate(bars []core.Bar) ([]core.Bar, error) {
	if len(bars) < s.MinBars() {
		return nil, core.WrapError(core.ErrInsufficientData,
			fmt.Errorf("sma_cross needs %d bars, got %d", s.MinBars(), len(bars)))
	}

	closes := strategy.Closes(bars)
	fast := indicator.SMA(closes, s.fastPeriod)
	slow := indicator.SMA(closes, s.slowPeriod)

	out := make([]core.Bar, len(bars))
	copy(out, bars)
	for i := range out {
		switch {
		case math.IsNaN(fast[i]) || math.IsNaN(slow[i]):
			out[i].Signal = core.SignalHold
		case fast[i] > slow[i]:
			out[i].Signal = core.SignalBuy
		case fast[i] < slow[i]:
			out[i].Signal = core.SignalSell
		default:
			out[i].Signal = core.SignalHold
		}
	}
	return out, nil
}
