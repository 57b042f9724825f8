package indicator

import (
	"math"
	"testing"
)

func TestRSI_WarmUp(t *testing.T) {
	prices := []float64{10, 11, 12, 13, 14, 15, 16, 17}
	rsi := RSI(prices, 4)

	if len(rsi) != len(prices) {
		t.Fatalf("expected %d values, got %d", len(prices), len(rsi))
	}
	for i := 0; i < 4; i++ {
		if !math.IsNaN(rsi[i]) {
			t.Errorf("rsi[%d] = %f, want NaN during warm-up", i, rsi[i])
		}
	}
}

func TestRSI_AllGains(t *testing.T) {
	prices := []float64{10, 11, 12, 13, 14, 15}
	rsi := RSI(prices, 3)

	for i := 3; i < len(rsi); i++ {
		if rsi[i] != 100 {
			t.Errorf("rsi[%d] = %f, want 100 for a lossless series", i, rsi[i])
		}
	}
}

func TestRSI_AllLosses(t *testing.T) {
	prices := []float64{15, 14, 13, 12, 11, 10}
	rsi := RSI(prices, 3)

	for i := 3; i < len(rsi); i++ {
		if rsi[i] != 0 {
			t.Errorf("rsi[%d] = %f, want 0 for a gainless series", i, rsi[i])
		}
	}
}

func TestRSI_FlatSeries(t *testing.T) {
	prices := []float64{10, 10, 10, 10, 10}
	rsi := RSI(prices, 3)

	for i := 3; i < len(rsi); i++ {
		if !math.IsNaN(rsi[i]) {
			t.Errorf("rsi[%d] = %f, want NaN for a changeless series", i, rsi[i])
		}
	}
}

func TestRSI_Bounds(t *testing.T) {
	prices := []float64{44, 44.34, 44.09, 43.61, 44.33, 44.83, 45.10, 45.42, 45.84, 46.08, 45.89, 46.03, 45.61, 46.28, 46.28, 46.00, 46.03, 46.41, 46.22, 45.64}
	rsi := RSI(prices, 14)

	var seen bool
	for i, v := range rsi {
		if math.IsNaN(v) {
			continue
		}
		seen = true
		if v < 0 || v > 100 {
			t.Errorf("rsi[%d] = %f out of [0, 100]", i, v)
		}
	}
	if !seen {
		t.Fatal("expected at least one defined RSI value")
	}

	// Mostly rising series should read above the midline.
	if rsi[14] <= 50 {
		t.Errorf("rsi[14] = %f, want above 50 on a rising series", rsi[14])
	}
}

func TestRSI_NotEnoughData(t *testing.T) {
	rsi := RSI([]float64{10, 11, 12}, 14)
	for i, v := range rsi {
		if !math.IsNaN(v) {
			t.Errorf("rsi[%d] = %f, want NaN", i, v)
		}
	}
}
