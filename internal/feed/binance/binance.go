// Package binance implements the feed Provider against the Binance
// spot REST API.
package binance

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/hindsightlab/hindsight/internal/core"
	"github.com/hindsightlab/hindsight/internal/feed"
	"golang.org/x/time/rate"
)

// pageLimit is the most klines Binance returns per request.
const pageLimit = 1000

var _ feed.Provider = (*Binance)(nil)

// Config holds Binance client settings. Public market data needs no
// keys; the endpoint override exists for tests.
type Config struct {
	APIKey     string
	APISecret  string
	BaseURL    string
	RateLimit  float64 // requests per second
	Burst      int
	MaxRetries int
}

func (c Config) withDefaults() Config {
	if c.RateLimit <= 0 {
		c.RateLimit = 10
	}
	if c.Burst <= 0 {
		c.Burst = 20
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	return c
}

// Binance implements the feed Provider for the Binance exchange
type Binance struct {
	client     *binance.Client
	limiter    *rate.Limiter
	maxRetries int
}

// New creates a new Binance provider
func New(cfg Config) *Binance {
	cfg = cfg.withDefaults()

	client := binance.NewClient(cfg.APIKey, cfg.APISecret)
	client.HTTPClient = &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	if cfg.BaseURL != "" {
		client.BaseURL = cfg.BaseURL
	}

	return &Binance{
		client:     client,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		maxRetries: cfg.MaxRetries,
	}
}

func (b *Binance) Name() string {
	return "binance"
}

// TopPairs ranks the exchange's trading pairs for a quote asset by
// 24h quote volume and returns the top n symbols.
func (b *Binance) TopPairs(ctx context.Context, quote string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}

	var info *binance.ExchangeInfo
	err := b.call(ctx, func() error {
		var err error
		info, err = b.client.NewExchangeInfoService().Do(ctx)
		return err
	})
	if err != nil {
		return nil, core.WrapError(core.ErrFetchFailed, fmt.Errorf("exchange info: %w", err))
	}

	trading := make(map[string]struct{})
	for _, s := range info.Symbols {
		if s.Status == "TRADING" && s.QuoteAsset == quote {
			trading[s.Symbol] = struct{}{}
		}
	}
	if len(trading) == 0 {
		return nil, core.WrapError(core.ErrSymbolNotFound,
			fmt.Errorf("no trading pairs with quote asset %s", quote))
	}

	var stats []*binance.PriceChangeStats
	err = b.call(ctx, func() error {
		var err error
		stats, err = b.client.NewListPriceChangeStatsService().Do(ctx)
		return err
	})
	if err != nil {
		return nil, core.WrapError(core.ErrFetchFailed, fmt.Errorf("24h ticker: %w", err))
	}

	type ranked struct {
		symbol string
		volume float64
	}
	candidates := make([]ranked, 0, len(trading))
	for _, s := range stats {
		if _, ok := trading[s.Symbol]; !ok {
			continue
		}
		vol, err := strconv.ParseFloat(s.QuoteVolume, 64)
		if err != nil {
			continue
		}
		candidates = append(candidates, ranked{symbol: s.Symbol, volume: vol})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].volume != candidates[j].volume {
			return candidates[i].volume > candidates[j].volume
		}
		return candidates[i].symbol < candidates[j].symbol
	})

	if n > len(candidates) {
		n = len(candidates)
	}
	symbols := make([]string, n)
	for i := 0; i < n; i++ {
		symbols[i] = candidates[i].symbol
	}
	return symbols, nil
}

// Klines pages through the klines endpoint 1000 bars at a time,
// advancing past the last received open time, until the window is
// covered or the exchange runs out of data.
func (b *Binance) Klines(ctx context.Context, symbol string, interval core.Interval, from, to time.Time) ([]core.Bar, error) {
	if interval.Duration() == 0 {
		return nil, core.WrapError(core.ErrFetchFailed,
			fmt.Errorf("unrecognized interval %q", interval))
	}
	if !from.Before(to) {
		return nil, nil
	}

	var bars []core.Bar
	cursor := from.UnixMilli()
	endMs := to.UnixMilli()

	for cursor < endMs {
		var klines []*binance.Kline
		err := b.call(ctx, func() error {
			var err error
			klines, err = b.client.NewKlinesService().
				Symbol(symbol).
				Interval(string(interval)).
				StartTime(cursor).
				EndTime(endMs).
				Limit(pageLimit).
				Do(ctx)
			return err
		})
		if err != nil {
			return nil, core.WrapError(core.ErrFetchFailed,
				fmt.Errorf("%s klines at %d: %w", symbol, cursor, err))
		}
		if len(klines) == 0 {
			break
		}

		for _, k := range klines {
			// Pages overlap by one bar when the cursor lands on
			// an existing open time.
			if len(bars) > 0 && k.OpenTime <= bars[len(bars)-1].Time.UnixMilli() {
				continue
			}
			bar, err := toBar(symbol, k)
			if err != nil {
				return nil, core.WrapError(core.ErrFetchFailed, err)
			}
			bars = append(bars, bar)
		}

		last := klines[len(klines)-1]
		next := last.OpenTime + int64(interval.Duration()/time.Millisecond)
		if next <= cursor {
			break
		}
		cursor = next

		// A short page means the exchange has no more data in the
		// window.
		if len(klines) < pageLimit {
			break
		}
	}

	return bars, nil
}

// call runs fn behind the rate limiter with bounded exponential
// backoff, giving up early when the context is done.
func (b *Binance) call(ctx context.Context, fn func() error) error {
	backoff := 100 * time.Millisecond

	var err error
	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		if werr := b.limiter.Wait(ctx); werr != nil {
			return werr
		}

		if err = fn(); err == nil {
			return nil
		}
		if attempt == b.maxRetries {
			break
		}

		wait := time.Duration(math.Pow(2, float64(attempt))) * backoff
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return err
}

// toBar converts one kline's string fields to a Bar.
func toBar(symbol string, k *binance.Kline) (core.Bar, error) {
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return core.Bar{}, fmt.Errorf("%s: parsing open %q: %w", symbol, k.Open, err)
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return core.Bar{}, fmt.Errorf("%s: parsing high %q: %w", symbol, k.High, err)
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return core.Bar{}, fmt.Errorf("%s: parsing low %q: %w", symbol, k.Low, err)
	}
	closePrice, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return core.Bar{}, fmt.Errorf("%s: parsing close %q: %w", symbol, k.Close, err)
	}
	volume, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return core.Bar{}, fmt.Errorf("%s: parsing volume %q: %w", symbol, k.Volume, err)
	}

	return core.Bar{
		Symbol: symbol,
		Time:   time.UnixMilli(k.OpenTime).UTC(),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: volume,
	}, nil
}
