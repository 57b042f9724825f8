// Package feed defines the market data boundary: providers fetch
// historical bars from an exchange, the Loader combines them with the
// local cache.
package feed

import (
	"context"
	"time"

	"github.com/hindsightlab/hindsight/internal/core"
)

// Provider defines the interface for exchange market data sources
type Provider interface {
	// Name returns the provider identifier (e.g., "binance")
	Name() string

	// TopPairs returns the top n trading pairs for a quote asset,
	// ranked by 24h quote volume descending.
	TopPairs(ctx context.Context, quote string, n int) ([]string, error)

	// Klines fetches OHLCV bars for [from, to) at the given
	// interval, sorted by open time with no duplicates.
	Klines(ctx context.Context, symbol string, interval core.Interval, from, to time.Time) ([]core.Bar, error)
}
