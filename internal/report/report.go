// Package report renders backtest runs into CSV artifacts and writes
// them through the archive storage backend.
package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"path"
	"sort"
	"strconv"
	"time"

	"github.com/hindsightlab/hindsight/internal/backtest"
	"github.com/hindsightlab/hindsight/internal/storage/archive"
	"go.uber.org/zap"
)

var tradeHeaders = []string{
	"symbol", "strategy", "entry_time", "entry_price", "exit_time",
	"exit_price", "return", "duration_min", "closed_at_horizon",
}

// Reporter writes run artifacts. The storage backend decides where
// they land (local directory or S3).
type Reporter struct {
	storage archive.Storage
	logger  *zap.Logger
}

// New creates a reporter over a storage backend.
func New(storage archive.Storage, logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{storage: storage, logger: logger}
}

// WriteRun persists three CSVs for one run under <runID>/:
// trades.csv (every trade of every result), summary.csv (one row per
// (symbol, strategy), sorted by symbol then strategy), and
// comparison.csv (the ranked table). It returns the artifact paths.
func (r *Reporter) WriteRun(ctx context.Context, runID string, table *backtest.Table, results []*backtest.Result) ([]string, error) {
	artifacts := make([]string, 0, 3)

	tradesPath := path.Join(runID, "trades.csv")
	if err := r.write(ctx, tradesPath, tradeHeaders, tradeRecords(results)); err != nil {
		return nil, fmt.Errorf("writing trades: %w", err)
	}
	artifacts = append(artifacts, tradesPath)

	summaryPath := path.Join(runID, "summary.csv")
	if err := r.write(ctx, summaryPath, table.Headers(), summaryRecords(table)); err != nil {
		return nil, fmt.Errorf("writing summary: %w", err)
	}
	artifacts = append(artifacts, summaryPath)

	comparisonPath := path.Join(runID, "comparison.csv")
	if err := r.write(ctx, comparisonPath, table.Headers(), table.Records()); err != nil {
		return nil, fmt.Errorf("writing comparison: %w", err)
	}
	artifacts = append(artifacts, comparisonPath)

	r.logger.Info("run artifacts written",
		zap.String("run_id", runID),
		zap.Int("trades", countTrades(results)),
		zap.Int("rows", len(table.Rows)),
	)
	return artifacts, nil
}

func (r *Reporter) write(ctx context.Context, path string, headers []string, records [][]string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(headers); err != nil {
		return err
	}
	if err := w.WriteAll(records); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	return r.storage.Write(ctx, path, buf.Bytes())
}

func tradeRecords(results []*backtest.Result) [][]string {
	var records [][]string
	for _, res := range results {
		for _, t := range res.Trades {
			records = append(records, []string{
				t.Symbol,
				t.Strategy,
				t.EntryTime.UTC().Format(time.RFC3339),
				formatFloat(t.EntryPrice),
				t.ExitTime.UTC().Format(time.RFC3339),
				formatFloat(t.ExitPrice),
				formatFloat(t.Return),
				formatFloat(t.Duration.Minutes()),
				strconv.FormatBool(t.ClosedAtHorizon),
			})
		}
	}
	return records
}

// summaryRecords re-sorts the table projection by symbol then
// strategy, keeping summary.csv stable regardless of the ranking
// metric the comparison used.
func summaryRecords(table *backtest.Table) [][]string {
	records := table.Records()
	sort.Slice(records, func(i, j int) bool {
		if records[i][0] != records[j][0] {
			return records[i][0] < records[j][0]
		}
		return records[i][1] < records[j][1]
	})
	return records
}

func countTrades(results []*backtest.Result) int {
	var n int
	for _, res := range results {
		n += len(res.Trades)
	}
	return n
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
