package strategy

import (
	"github.com/hindsightlab/hindsight/internal/core"
)

// Config holds generator configuration
type Config struct {
	Enabled bool
	Params  map[string]any
}

// Generator annotates a bar series with buy/sell/hold signals. An
// implementation is a pure transform: it reads prices and writes the
// Signal column, nothing else. The simulator never branches on which
// generator produced a series.
type Generator interface {
	Name() string
	Description() string

	// MinBars is the shortest series the generator can annotate,
	// covering its indicator warm-up.
	MinBars() int

	Init(cfg Config) error

	// Annotate returns a fresh copy of bars with the Signal column
	// set on every bar. The input slice is never mutated.
	Annotate(bars []core.Bar) ([]core.Bar, error)
}

// IntParam reads an integer parameter, tolerating the float64 values
// YAML decoding can produce.
func IntParam(params map[string]any, key string, def int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// FloatParam reads a float parameter.
func FloatParam(params map[string]any, key string, def float64) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}

// Closes extracts the close price column from a bar series.
func Closes(bars []core.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
