// Package store persists bar series to local Parquet files so
// repeated backtests over the same window never refetch from the
// exchange.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/hindsightlab/hindsight/internal/core"
)

// BarCache stores one Parquet file per (interval, symbol).
// Layout: <dir>/<interval>/<SYMBOL>.parquet
type BarCache struct {
	dir string
}

// NewBarCache creates a cache rooted at the given directory.
func NewBarCache(dir string) *BarCache {
	return &BarCache{dir: dir}
}

// barRecord is the on-disk Parquet schema for one bar.
type barRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
}

// Load reads every cached bar for a series, sorted by timestamp.
// A series with no cache file returns ErrCacheMiss.
func (c *BarCache) Load(symbol string, interval core.Interval) ([]core.Bar, error) {
	path := c.path(symbol, interval)

	records, err := parquet.ReadFile[barRecord](path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, core.WrapError(core.ErrCacheMiss,
				fmt.Errorf("%s %s", symbol, interval))
		}
		return nil, fmt.Errorf("reading cache %s: %w", path, err)
	}

	bars := make([]core.Bar, 0, len(records))
	for _, r := range records {
		bars = append(bars, core.Bar{
			Symbol: r.Symbol,
			Time:   time.UnixMilli(r.Timestamp).UTC(),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

// Save merges bars into the series file: the union of existing and
// incoming records, deduplicated by timestamp with incoming records
// winning, sorted ascending.
func (c *BarCache) Save(symbol string, interval core.Interval, bars []core.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	path := c.path(symbol, interval)

	existing, err := parquet.ReadFile[barRecord](path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("reading cache %s: %w", path, err)
	}

	seen := make(map[int64]barRecord, len(existing)+len(bars))
	for _, r := range existing {
		seen[r.Timestamp] = r
	}
	for _, b := range bars {
		seen[b.Time.UnixMilli()] = barRecord{
			Symbol:    b.Symbol,
			Timestamp: b.Time.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		}
	}

	merged := make([]barRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Timestamp < merged[j].Timestamp })

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	if err := parquet.WriteFile(path, merged); err != nil {
		return fmt.Errorf("writing cache %s: %w", path, err)
	}
	return nil
}

// Symbols lists the symbols cached for an interval, sorted.
func (c *BarCache) Symbols(interval core.Interval) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(c.dir, string(interval)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".parquet"); ok && !e.IsDir() {
			symbols = append(symbols, name)
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

func (c *BarCache) path(symbol string, interval core.Interval) string {
	return filepath.Join(c.dir, string(interval), strings.ToUpper(symbol)+".parquet")
}
