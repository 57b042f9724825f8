// Package app wires the feed, cache, strategies, simulator and
// reporting into one orchestrator and runs complete backtests.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hindsightlab/hindsight/internal/backtest"
	"github.com/hindsightlab/hindsight/internal/config"
	"github.com/hindsightlab/hindsight/internal/core"
	"github.com/hindsightlab/hindsight/internal/feed"
	"github.com/hindsightlab/hindsight/internal/feed/binance"
	"github.com/hindsightlab/hindsight/internal/llm/factory"
	"github.com/hindsightlab/hindsight/internal/metrics"
	"github.com/hindsightlab/hindsight/internal/narrate"
	"github.com/hindsightlab/hindsight/internal/report"
	"github.com/hindsightlab/hindsight/internal/storage/archive"
	"github.com/hindsightlab/hindsight/internal/store"
	"github.com/hindsightlab/hindsight/internal/strategy"
	"github.com/hindsightlab/hindsight/internal/strategy/rsibb"
	"github.com/hindsightlab/hindsight/internal/strategy/smacross"
	"github.com/hindsightlab/hindsight/internal/strategy/vwaprev"
)

const defaultWorkers = 4

// App is the backtest orchestrator.
type App struct {
	cfg      *config.Config
	logger   *zap.Logger
	provider feed.Provider
	loader   *feed.Loader
	cache    *store.BarCache
	engine   *strategy.Engine
	reporter *report.Reporter
	narrator *narrate.Narrator
	metrics  *metrics.Registry
	sim      backtest.SimConfig
	eval     backtest.EvalOptions
	workers  int
}

// New builds an App from configuration. The LLM narrator is optional
// and only wired when a provider is configured; everything else is
// mandatory.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		cfg = config.Defaults()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	provider, err := newProvider(cfg.Feed)
	if err != nil {
		return nil, err
	}

	registry := metrics.NewRegistry()
	cache := store.NewBarCache(cfg.Cache.Dir)
	loader := feed.NewLoader(cache, provider, logger, registry)

	engine, err := newEngine(cfg.Strategies, logger)
	if err != nil {
		return nil, err
	}

	storage, err := newStorage(cfg.Report)
	if err != nil {
		return nil, err
	}

	var narrator *narrate.Narrator
	if cfg.LLM.Provider != "" {
		llmProvider, err := factory.New(cfg.LLM)
		if err != nil {
			return nil, err
		}
		narrator = narrate.New(llmProvider, logger)
	} else {
		narrator = narrate.New(nil, logger)
	}

	workers := cfg.Backtest.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	return &App{
		cfg:      cfg,
		logger:   logger,
		provider: provider,
		loader:   loader,
		cache:    cache,
		engine:   engine,
		reporter: report.New(storage, logger),
		narrator: narrator,
		metrics:  registry,
		sim: backtest.SimConfig{
			InitialCapital:   cfg.Backtest.InitialCapital,
			PositionFraction: cfg.Backtest.PositionFraction,
			FeeRate:          cfg.Backtest.FeeRate,
			SlippageRate:     cfg.Backtest.SlippageRate,
		},
		eval:    backtest.EvalOptions{ExcludeHorizonTrades: cfg.Backtest.ExcludeHorizonTrades},
		workers: workers,
	}, nil
}

func newProvider(cfg config.FeedConfig) (feed.Provider, error) {
	switch cfg.Provider {
	case "", "binance":
		return binance.New(binance.Config{
			APIKey:     cfg.APIKey,
			APISecret:  cfg.APISecret,
			BaseURL:    cfg.BaseURL,
			RateLimit:  cfg.RateLimit,
			Burst:      cfg.Burst,
			MaxRetries: cfg.MaxRetries,
		}), nil
	}
	return nil, core.WrapError(core.ErrConfigInvalid,
		fmt.Errorf("unknown feed provider %q", cfg.Provider))
}

// newEngine registers the built-in generators and applies per-strategy
// configuration. A strategy absent from the config runs with its
// defaults; one explicitly disabled is not registered at all.
func newEngine(cfgs map[string]config.StrategyConfig, logger *zap.Logger) (*strategy.Engine, error) {
	engine := strategy.NewEngine(logger)

	builtins := []strategy.Generator{
		smacross.New(0, 0),
		rsibb.New(0, 0, 0),
		vwaprev.New(0, 0),
	}
	for _, gen := range builtins {
		sc, configured := cfgs[gen.Name()]
		if configured && !sc.Enabled {
			continue
		}
		if err := gen.Init(strategy.Config{Enabled: true, Params: sc.Params}); err != nil {
			return nil, err
		}
		engine.Register(gen)
	}
	return engine, nil
}

func newStorage(cfg config.ReportConfig) (archive.Storage, error) {
	switch cfg.Storage {
	case "", "localfs":
		return archive.NewLocalFS(cfg.Dir)
	case "s3":
		return archive.NewS3(archive.S3Config{
			Bucket:    cfg.S3.Bucket,
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		})
	}
	return nil, core.WrapError(core.ErrConfigInvalid,
		fmt.Errorf("unknown report storage %q", cfg.Storage))
}

// Metrics exposes the prometheus registry for the HTTP layer.
func (a *App) Metrics() *metrics.Registry {
	return a.metrics
}

// Config returns the configuration the app was built with.
func (a *App) Config() *config.Config {
	return a.cfg
}

// NarrationEnabled reports whether LLM narration is wired.
func (a *App) NarrationEnabled() bool {
	return a.narrator.Enabled()
}

// StrategyInfo describes one registered generator.
type StrategyInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	MinBars     int    `json:"min_bars"`
}

// Strategies lists the registered generators, sorted by name.
func (a *App) Strategies() []StrategyInfo {
	gens := a.engine.List()
	infos := make([]StrategyInfo, 0, len(gens))
	for _, g := range gens {
		infos = append(infos, StrategyInfo{
			Name:        g.Name(),
			Description: g.Description(),
			MinBars:     g.MinBars(),
		})
	}
	return infos
}

// Symbols returns the top trading pairs for the configured quote
// asset, ranked by 24h quote volume.
func (a *App) Symbols(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		n = a.cfg.Feed.TopN
	}
	symbols, err := a.provider.TopPairs(ctx, a.cfg.Feed.Quote, n)
	if err != nil {
		a.metrics.RecordFetch(a.provider.Name(), "error")
		return nil, err
	}
	a.metrics.RecordFetch(a.provider.Name(), "ok")
	return symbols, nil
}

// Fetch warms the bar cache for the given symbols and window without
// running any simulation. Symbols that fail are reported, not fatal.
func (a *App) Fetch(ctx context.Context, symbols []string, interval core.Interval, from, to time.Time) ([]Skip, error) {
	symbols, err := a.resolveSymbols(ctx, symbols)
	if err != nil {
		return nil, err
	}

	var skipped []Skip
	for _, symbol := range symbols {
		bars, err := a.loader.Load(ctx, symbol, interval, from, to)
		if err != nil {
			a.metrics.RecordFetch(a.provider.Name(), "error")
			a.logger.Warn("fetch failed",
				zap.String("symbol", symbol),
				zap.Error(err),
			)
			skipped = append(skipped, Skip{Symbol: symbol, Reason: err.Error()})
			continue
		}
		a.metrics.RecordFetch(a.provider.Name(), "ok")
		a.logger.Info("fetched bars",
			zap.String("symbol", symbol),
			zap.String("interval", string(interval)),
			zap.Int("bars", len(bars)),
		)
	}
	return skipped, nil
}

// RunRequest describes one backtest run. Zero fields fall back to the
// configuration: all registered strategies, the configured interval,
// and the top configured pairs when Symbols is empty.
type RunRequest struct {
	Symbols    []string
	Strategies []string
	Interval   core.Interval
	From       time.Time
	To         time.Time
	SortKey    string
	Narrate    bool
}

// Skip records one (symbol, strategy) pair left out of a run.
type Skip struct {
	Symbol   string `json:"symbol"`
	Strategy string `json:"strategy,omitempty"`
	Reason   string `json:"reason"`
}

// RunReport is the outcome of one complete run.
type RunReport struct {
	RunID     string
	Interval  core.Interval
	From      time.Time
	To        time.Time
	Table     *backtest.Table
	Results   []*backtest.Result
	Artifacts []string
	Narrative string
	Skipped   []Skip
}

// Run executes the full pipeline: load bars, annotate signals,
// simulate, evaluate, rank, persist artifacts, and narrate when asked.
// Individual (symbol, strategy) failures are isolated into Skipped;
// only pipeline-level failures (ranking, artifact writes) are fatal.
func (a *App) Run(ctx context.Context, req RunRequest) (*RunReport, error) {
	started := time.Now()

	out, err := a.run(ctx, req)
	if err != nil {
		a.metrics.RecordRun("error", time.Since(started).Seconds())
		return nil, err
	}
	a.metrics.RecordRun("ok", time.Since(started).Seconds())
	return out, nil
}

func (a *App) run(ctx context.Context, req RunRequest) (*RunReport, error) {
	req, err := a.normalize(ctx, req)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	a.logger.Info("run starting",
		zap.String("run_id", runID),
		zap.Strings("symbols", req.Symbols),
		zap.Strings("strategies", req.Strategies),
		zap.String("interval", string(req.Interval)),
		zap.Time("from", req.From),
		zap.Time("to", req.To),
	)

	summaries, results, skipped := a.simulateAll(ctx, req)

	table, err := backtest.Compare(summaries, req.SortKey)
	if err != nil {
		return nil, err
	}

	artifacts, err := a.reporter.WriteRun(ctx, runID, table, results)
	if err != nil {
		return nil, err
	}

	out := &RunReport{
		RunID:     runID,
		Interval:  req.Interval,
		From:      req.From,
		To:        req.To,
		Table:     table,
		Results:   results,
		Artifacts: artifacts,
		Skipped:   skipped,
	}

	if req.Narrate && a.narrator.Enabled() {
		narrative, err := a.narrator.Narrate(ctx, narrate.Request{
			Table:    table,
			From:     req.From,
			To:       req.To,
			Interval: req.Interval,
		})
		if err != nil {
			// Narration is decoration; the run already succeeded.
			a.logger.Warn("narration failed", zap.String("run_id", runID), zap.Error(err))
		} else {
			out.Narrative = narrative
		}
	}

	a.logger.Info("run complete",
		zap.String("run_id", runID),
		zap.Int("rows", len(table.Rows)),
		zap.Int("skipped", len(skipped)),
	)
	return out, nil
}

func (a *App) normalize(ctx context.Context, req RunRequest) (RunRequest, error) {
	if req.Interval == "" {
		req.Interval = core.Interval(a.cfg.Feed.Interval)
	}
	if req.Interval.Duration() == 0 {
		return req, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unrecognized interval %q", req.Interval))
	}
	if !req.From.Before(req.To) {
		return req, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("window start %s is not before end %s",
				req.From.Format(time.RFC3339), req.To.Format(time.RFC3339)))
	}

	if len(req.Strategies) == 0 {
		for _, info := range a.Strategies() {
			req.Strategies = append(req.Strategies, info.Name)
		}
	}
	for _, name := range req.Strategies {
		if _, ok := a.engine.Get(name); !ok {
			return req, core.WrapError(core.ErrUnknownStrategy, fmt.Errorf("strategy %q", name))
		}
	}

	symbols, err := a.resolveSymbols(ctx, req.Symbols)
	if err != nil {
		return req, err
	}
	req.Symbols = symbols
	return req, nil
}

func (a *App) resolveSymbols(ctx context.Context, symbols []string) ([]string, error) {
	if len(symbols) > 0 {
		return symbols, nil
	}
	discovered, err := a.Symbols(ctx, a.cfg.Feed.TopN)
	if err != nil {
		return nil, err
	}
	if len(discovered) == 0 {
		return nil, core.WrapError(core.ErrNoData,
			fmt.Errorf("no %s pairs discovered", a.cfg.Feed.Quote))
	}
	return discovered, nil
}

// simulateAll fans symbols out over a bounded worker pool. Each worker
// loads one symbol's bars once and runs every requested strategy over
// them.
func (a *App) simulateAll(ctx context.Context, req RunRequest) (map[backtest.Key]backtest.Summary, []*backtest.Result, []Skip) {
	var (
		mu        sync.Mutex
		summaries = make(map[backtest.Key]backtest.Summary)
		results   []*backtest.Result
		skipped   []Skip
	)

	jobs := make(chan string)
	var wg sync.WaitGroup

	workers := a.workers
	if workers > len(req.Symbols) {
		workers = len(req.Symbols)
	}
	a.metrics.SetJobsActive("simulate", workers)
	defer a.metrics.SetJobsActive("simulate", 0)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range jobs {
				sums, res, skips := a.simulateSymbol(ctx, symbol, req)
				mu.Lock()
				for k, v := range sums {
					summaries[k] = v
				}
				results = append(results, res...)
				skipped = append(skipped, skips...)
				mu.Unlock()
			}
		}()
	}

	for _, symbol := range req.Symbols {
		if ctx.Err() != nil {
			break
		}
		jobs <- symbol
	}
	close(jobs)
	wg.Wait()

	return summaries, results, skipped
}

func (a *App) simulateSymbol(ctx context.Context, symbol string, req RunRequest) (map[backtest.Key]backtest.Summary, []*backtest.Result, []Skip) {
	bars, err := a.loader.Load(ctx, symbol, req.Interval, req.From, req.To)
	if err != nil {
		a.logger.Warn("load failed, skipping symbol",
			zap.String("symbol", symbol),
			zap.Error(err),
		)
		return nil, nil, []Skip{{Symbol: symbol, Reason: err.Error()}}
	}
	if len(bars) == 0 {
		return nil, nil, []Skip{{Symbol: symbol, Reason: "no bars in window"}}
	}

	summaries := make(map[backtest.Key]backtest.Summary, len(req.Strategies))
	var (
		results []*backtest.Result
		skipped []Skip
	)
	for _, name := range req.Strategies {
		started := time.Now()
		res, err := a.simulateOne(name, bars)
		if err != nil {
			a.metrics.RecordSimulation(name, "error", time.Since(started).Seconds(), 0)
			a.logger.Warn("simulation failed, skipping pair",
				zap.String("symbol", symbol),
				zap.String("strategy", name),
				zap.Error(err),
			)
			skipped = append(skipped, Skip{Symbol: symbol, Strategy: name, Reason: err.Error()})
			continue
		}
		a.metrics.RecordSimulation(name, "ok", time.Since(started).Seconds(), len(res.Trades))

		key := backtest.Key{Symbol: symbol, Strategy: name}
		summaries[key] = backtest.Evaluate(res, a.eval)
		results = append(results, res)
	}
	return summaries, results, skipped
}

func (a *App) simulateOne(name string, bars []core.Bar) (*backtest.Result, error) {
	annotated, err := a.engine.Annotate(name, bars)
	if err != nil {
		return nil, err
	}
	return backtest.Simulate(annotated, name, a.sim)
}
