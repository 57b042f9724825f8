package backtest

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/hindsightlab/hindsight/internal/core"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// series builds a minute-bar sequence from closes and signals.
func series(symbol string, closes []float64, signals []core.Signal) []core.Bar {
	bars := make([]core.Bar, len(closes))
	for i, c := range closes {
		bars[i] = core.Bar{
			Symbol: symbol,
			Time:   t0.Add(time.Duration(i) * time.Minute),
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Volume: 100,
			Signal: signals[i],
		}
	}
	return bars
}

func TestSimulate_RoundTrip(t *testing.T) {
	bars := series("ETHBTC",
		[]float64{100, 80, 120},
		[]core.Signal{core.SignalBuy, core.SignalHold, core.SignalSell})

	res, err := Simulate(bars, "smacross", SimConfig{})
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}

	if len(res.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(res.Trades))
	}

	trade := res.Trades[0]
	if trade.EntryPrice != 100 {
		t.Errorf("EntryPrice = %v, want 100", trade.EntryPrice)
	}
	if trade.ExitPrice != 120 {
		t.Errorf("ExitPrice = %v, want 120", trade.ExitPrice)
	}
	if math.Abs(trade.Return-0.20) > 1e-12 {
		t.Errorf("Return = %v, want 0.20", trade.Return)
	}
	if trade.ClosedAtHorizon {
		t.Error("signal-closed trade should not be flagged as horizon")
	}
	if trade.Duration != 2*time.Minute {
		t.Errorf("Duration = %v, want 2m", trade.Duration)
	}
	if trade.Symbol != "ETHBTC" || trade.Strategy != "smacross" {
		t.Errorf("trade labels = %s/%s", trade.Symbol, trade.Strategy)
	}

	wantCurve := []float64{1.0, 0.8, 1.2}
	if len(res.Curve) != len(wantCurve) {
		t.Fatalf("curve length = %d, want %d", len(res.Curve), len(wantCurve))
	}
	for i, want := range wantCurve {
		if math.Abs(res.Curve[i].Equity-want) > 1e-12 {
			t.Errorf("curve[%d] = %v, want %v", i, res.Curve[i].Equity, want)
		}
	}
}

func TestSimulate_RedundantSignalsDropped(t *testing.T) {
	bars := series("ETHBTC",
		[]float64{100, 110, 120, 130},
		[]core.Signal{core.SignalBuy, core.SignalBuy, core.SignalSell, core.SignalSell})

	res, err := Simulate(bars, "test", SimConfig{})
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}

	if len(res.Trades) != 1 {
		t.Fatalf("expected exactly 1 trade, got %d", len(res.Trades))
	}
	if res.Trades[0].EntryPrice != 100 {
		t.Errorf("EntryPrice = %v, want 100 (second buy must be a no-op)", res.Trades[0].EntryPrice)
	}
	if res.Trades[0].ExitPrice != 120 {
		t.Errorf("ExitPrice = %v, want 120 (second sell must be a no-op)", res.Trades[0].ExitPrice)
	}

	// Equity stays at the realized value after the close.
	last := res.Curve[len(res.Curve)-1].Equity
	if math.Abs(last-1.2) > 1e-12 {
		t.Errorf("final equity = %v, want 1.2", last)
	}
}

func TestSimulate_HorizonClose(t *testing.T) {
	bars := series("ETHBTC",
		[]float64{100, 90, 110},
		[]core.Signal{core.SignalBuy, core.SignalHold, core.SignalHold})

	res, err := Simulate(bars, "test", SimConfig{})
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}

	if len(res.Trades) != 1 {
		t.Fatalf("expected 1 force-closed trade, got %d", len(res.Trades))
	}
	trade := res.Trades[0]
	if !trade.ClosedAtHorizon {
		t.Error("expected ClosedAtHorizon flag")
	}
	if trade.ExitPrice != 110 {
		t.Errorf("ExitPrice = %v, want last close 110", trade.ExitPrice)
	}
	if math.Abs(trade.Return-0.10) > 1e-12 {
		t.Errorf("Return = %v, want 0.10", trade.Return)
	}
}

func TestSimulate_AllHoldIsFlat(t *testing.T) {
	signals := make([]core.Signal, 5)
	for i := range signals {
		signals[i] = core.SignalHold
	}
	bars := series("ETHBTC", []float64{100, 101, 99, 102, 100}, signals)

	res, err := Simulate(bars, "test", SimConfig{InitialCapital: 1000})
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}

	if len(res.Trades) != 0 {
		t.Errorf("expected no trades, got %d", len(res.Trades))
	}
	for i, p := range res.Curve {
		if p.Equity != 1000 {
			t.Errorf("curve[%d] = %v, want flat 1000", i, p.Equity)
		}
	}
	if res.BarsInPosition != 0 {
		t.Errorf("BarsInPosition = %d, want 0", res.BarsInPosition)
	}
}

func TestSimulate_SellWhileFlatIgnored(t *testing.T) {
	bars := series("ETHBTC",
		[]float64{100, 110},
		[]core.Signal{core.SignalSell, core.SignalHold})

	res, err := Simulate(bars, "test", SimConfig{})
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}
	if len(res.Trades) != 0 {
		t.Errorf("expected 0 trades for sell without position, got %d", len(res.Trades))
	}
}

func TestSimulate_EmptySeries(t *testing.T) {
	res, err := Simulate(nil, "test", SimConfig{})
	if err != nil {
		t.Fatalf("empty input must not error, got %v", err)
	}
	if len(res.Trades) != 0 {
		t.Errorf("expected 0 trades, got %d", len(res.Trades))
	}
	if len(res.Curve) != 1 || res.Curve[0].Equity != 1.0 {
		t.Errorf("expected single curve point at initial capital, got %+v", res.Curve)
	}
}

func TestSimulate_Reentry(t *testing.T) {
	bars := series("ETHBTC",
		[]float64{100, 110, 100, 120},
		[]core.Signal{core.SignalBuy, core.SignalSell, core.SignalBuy, core.SignalSell})

	res, err := Simulate(bars, "test", SimConfig{})
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}

	if len(res.Trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(res.Trades))
	}

	// Sequential full-reinvestment trades compound: 1.1 * 1.2 = 1.32.
	last := res.Curve[len(res.Curve)-1].Equity
	if math.Abs(last-1.32) > 1e-12 {
		t.Errorf("final equity = %v, want 1.32", last)
	}
}

func TestSimulate_MarkToMarketWhileLong(t *testing.T) {
	bars := series("ETHBTC",
		[]float64{100, 80, 90},
		[]core.Signal{core.SignalBuy, core.SignalHold, core.SignalHold})

	res, err := Simulate(bars, "test", SimConfig{})
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}

	if math.Abs(res.Curve[1].Equity-0.8) > 1e-12 {
		t.Errorf("curve[1] = %v, want mark-to-market 0.8", res.Curve[1].Equity)
	}
	if res.BarsInPosition != 3 {
		t.Errorf("BarsInPosition = %d, want 3", res.BarsInPosition)
	}
}

func TestSimulate_PositionFraction(t *testing.T) {
	bars := series("ETHBTC",
		[]float64{100, 120},
		[]core.Signal{core.SignalBuy, core.SignalSell})

	res, err := Simulate(bars, "test", SimConfig{PositionFraction: 0.5})
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}

	if math.Abs(res.Trades[0].Return-0.20) > 1e-12 {
		t.Errorf("trade return = %v, want 0.20 regardless of sizing", res.Trades[0].Return)
	}
	last := res.Curve[len(res.Curve)-1].Equity
	if math.Abs(last-1.10) > 1e-12 {
		t.Errorf("final equity = %v, want 1.10 at half size", last)
	}
}

func TestSimulate_FeesAndSlippage(t *testing.T) {
	bars := series("ETHBTC",
		[]float64{100, 110},
		[]core.Signal{core.SignalBuy, core.SignalSell})

	cfg := SimConfig{FeeRate: 0.001, SlippageRate: 0.0005}
	res, err := Simulate(bars, "test", cfg)
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}

	trade := res.Trades[0]
	if trade.EntryPrice != 100 || trade.ExitPrice != 110 {
		t.Errorf("trade records observed closes, got %v/%v", trade.EntryPrice, trade.ExitPrice)
	}

	entryFill := 100 * (1 + cfg.SlippageRate)
	exitFill := 110 * (1 - cfg.SlippageRate)
	want := exitFill/entryFill*(1-cfg.FeeRate)*(1-cfg.FeeRate) - 1
	if math.Abs(trade.Return-want) > 1e-12 {
		t.Errorf("net return = %v, want %v", trade.Return, want)
	}
	if trade.Return >= (110.0-100.0)/100.0 {
		t.Error("costs must reduce the return below the gross move")
	}
}

func TestSimulate_Idempotent(t *testing.T) {
	bars := series("ETHBTC",
		[]float64{100, 105, 95, 120, 110},
		[]core.Signal{core.SignalBuy, core.SignalHold, core.SignalSell, core.SignalBuy, core.SignalHold})

	first, err := Simulate(bars, "test", SimConfig{})
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}
	second, err := Simulate(bars, "test", SimConfig{})
	if err != nil {
		t.Fatalf("Simulate() error = %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("same input must yield identical results")
	}
}

func TestSimulate_Validation(t *testing.T) {
	good := series("ETHBTC",
		[]float64{100, 110},
		[]core.Signal{core.SignalBuy, core.SignalSell})

	tests := []struct {
		name   string
		mutate func([]core.Bar)
	}{
		{"unknown signal", func(b []core.Bar) { b[1].Signal = "exit" }},
		{"empty signal", func(b []core.Bar) { b[0].Signal = "" }},
		{"zero close", func(b []core.Bar) { b[1].Close = 0 }},
		{"negative low", func(b []core.Bar) { b[0].Low = -1 }},
		{"negative volume", func(b []core.Bar) { b[1].Volume = -5 }},
		{"duplicate timestamp", func(b []core.Bar) { b[1].Time = b[0].Time }},
		{"unsorted timestamps", func(b []core.Bar) { b[1].Time = b[0].Time.Add(-time.Minute) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bars := series("ETHBTC",
				[]float64{100, 110},
				[]core.Signal{core.SignalBuy, core.SignalSell})
			tt.mutate(bars)

			res, err := Simulate(bars, "test", SimConfig{})
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, core.ErrInvalidData) {
				t.Errorf("error = %v, want ErrInvalidData", err)
			}
			if res != nil {
				t.Error("no partial result on invalid input")
			}
		})
	}

	if _, err := Simulate(good, "test", SimConfig{}); err != nil {
		t.Errorf("unmutated series should pass validation: %v", err)
	}
}
