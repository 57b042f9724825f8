package feed

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/hindsightlab/hindsight/internal/core"
	"github.com/hindsightlab/hindsight/internal/store"
	"go.uber.org/zap"
)

// CacheMetrics counts cache outcomes per load.
type CacheMetrics interface {
	RecordCacheHit()
	RecordCacheMiss()
}

// Loader serves bar windows from the local cache and falls back to
// the provider for whatever the cache does not cover, persisting what
// it fetched.
type Loader struct {
	cache    *store.BarCache
	provider Provider
	logger   *zap.Logger
	metrics  CacheMetrics
}

// NewLoader creates a loader over a cache and a provider. A nil
// metrics recorder disables cache accounting.
func NewLoader(cache *store.BarCache, provider Provider, logger *zap.Logger, metrics CacheMetrics) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{cache: cache, provider: provider, logger: logger, metrics: metrics}
}

// Load returns the bars for [from, to). Cached bars are reused; only
// the uncovered head and tail of the window are fetched.
func (l *Loader) Load(ctx context.Context, symbol string, interval core.Interval, from, to time.Time) ([]core.Bar, error) {
	step := interval.Duration()
	if step == 0 {
		return nil, core.WrapError(core.ErrInvalidData,
			errors.New("unrecognized interval "+string(interval)))
	}
	if !from.Before(to) {
		return nil, nil
	}

	cached, err := l.cache.Load(symbol, interval)
	if err != nil && !errors.Is(err, core.ErrCacheMiss) {
		return nil, err
	}

	var fetched []core.Bar
	if missFrom, missTo, miss := missingRange(cached, from, to, step); miss {
		if l.metrics != nil {
			l.metrics.RecordCacheMiss()
		}
		l.logger.Debug("cache incomplete, fetching",
			zap.String("symbol", symbol),
			zap.String("interval", string(interval)),
			zap.Time("from", missFrom),
			zap.Time("to", missTo),
		)
		fetched, err = l.provider.Klines(ctx, symbol, interval, missFrom, missTo)
		if err != nil {
			return nil, err
		}
		if len(fetched) > 0 {
			if err := l.cache.Save(symbol, interval, fetched); err != nil {
				return nil, err
			}
		}
	} else {
		if l.metrics != nil {
			l.metrics.RecordCacheHit()
		}
		l.logger.Debug("cache hit",
			zap.String("symbol", symbol),
			zap.String("interval", string(interval)),
		)
	}

	return window(merge(cached, fetched), from, to), nil
}

// missingRange reports the span the provider must fill. Cached series
// can have interior gaps the exchange itself has (delistings, halts),
// so coverage is judged by the ends: a series starting at or before
// from and reaching the final bar of the window counts as complete.
func missingRange(cached []core.Bar, from, to time.Time, step time.Duration) (time.Time, time.Time, bool) {
	if len(cached) == 0 {
		return from, to, true
	}
	last := to.Add(-step)
	if cached[0].Time.After(from) {
		return from, to, true
	}
	if cached[len(cached)-1].Time.Before(last) {
		// Fetch only the uncovered tail.
		return cached[len(cached)-1].Time.Add(step), to, true
	}
	return time.Time{}, time.Time{}, false
}

// merge unions two sorted series, preferring b on timestamp conflicts.
func merge(a, b []core.Bar) []core.Bar {
	if len(b) == 0 {
		return a
	}
	if len(a) == 0 {
		return b
	}
	seen := make(map[int64]core.Bar, len(a)+len(b))
	for _, bar := range a {
		seen[bar.Time.UnixMilli()] = bar
	}
	for _, bar := range b {
		seen[bar.Time.UnixMilli()] = bar
	}
	out := make([]core.Bar, 0, len(seen))
	for _, bar := range seen {
		out = append(out, bar)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

// window trims a sorted series to [from, to).
func window(bars []core.Bar, from, to time.Time) []core.Bar {
	out := make([]core.Bar, 0, len(bars))
	for _, b := range bars {
		if b.Time.Before(from) || !b.Time.Before(to) {
			continue
		}
		out = append(out, b)
	}
	return out
}
