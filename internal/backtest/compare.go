package backtest

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/hindsightlab/hindsight/internal/core"
)

// Key identifies one (symbol, strategy) run in a comparison
type Key struct {
	Symbol   string
	Strategy string
}

// Ranking metrics accepted by Compare
const (
	MetricTotalReturn  = "total_return"
	MetricWinRate      = "win_rate"
	MetricAvgReturn    = "avg_return"
	MetricMaxDrawdown  = "max_drawdown"
	MetricSharpeRatio  = "sharpe_ratio"
	MetricProfitFactor = "profit_factor"
	MetricNumTrades    = "num_trades"
)

// Table is a ranked comparison of run summaries
type Table struct {
	SortKey string
	Rows    []Summary
}

// Compare ranks one Summary per (symbol, strategy) into a Table. An
// empty sortKey means total return. Rows sort by the chosen metric
// descending (drawdown ascending, lower is better); ties break by
// higher win rate, then symbol, then strategy, so the ordering is
// total and reproducible. Zero-trade summaries are kept, never
// dropped.
func Compare(summaries map[Key]Summary, sortKey string) (*Table, error) {
	if sortKey == "" {
		sortKey = MetricTotalReturn
	}
	rank, err := metricFunc(sortKey)
	if err != nil {
		return nil, err
	}

	rows := make([]Summary, 0, len(summaries))
	for key, s := range summaries {
		// The map key is authoritative for labeling, covering
		// summaries built from empty runs.
		s.Symbol = key.Symbol
		s.Strategy = key.Strategy
		rows = append(rows, s)
	}

	sort.Slice(rows, func(i, j int) bool {
		ri, rj := rank(rows[i]), rank(rows[j])
		if ri != rj {
			return ri > rj
		}
		if rows[i].WinRate != rows[j].WinRate {
			return rows[i].WinRate > rows[j].WinRate
		}
		if rows[i].Symbol != rows[j].Symbol {
			return rows[i].Symbol < rows[j].Symbol
		}
		return rows[i].Strategy < rows[j].Strategy
	})

	return &Table{SortKey: sortKey, Rows: rows}, nil
}

func metricFunc(key string) (func(Summary) float64, error) {
	switch key {
	case MetricTotalReturn:
		return func(s Summary) float64 { return s.TotalReturn }, nil
	case MetricWinRate:
		return func(s Summary) float64 { return s.WinRate }, nil
	case MetricAvgReturn:
		return func(s Summary) float64 { return s.AvgReturn }, nil
	case MetricMaxDrawdown:
		// Lower drawdown ranks higher.
		return func(s Summary) float64 { return -s.MaxDrawdown }, nil
	case MetricSharpeRatio:
		return func(s Summary) float64 { return s.SharpeRatio }, nil
	case MetricProfitFactor:
		return func(s Summary) float64 { return s.ProfitFactor }, nil
	case MetricNumTrades:
		return func(s Summary) float64 { return float64(s.NumTrades) }, nil
	}
	return nil, core.WrapError(core.ErrUnknownMetric, fmt.Errorf("sort key %q", key))
}

var tableHeaders = []string{
	"symbol", "strategy", "total_return", "num_trades", "win_rate",
	"avg_return", "max_drawdown", "sharpe_ratio", "profit_factor",
	"exposure", "avg_duration_min", "median_duration_min",
	"max_duration_min", "min_duration_min",
}

// Headers returns the column names of the flat projection.
func (t *Table) Headers() []string {
	return append([]string(nil), tableHeaders...)
}

// Records projects the rows into strings, one record per row, columns
// aligned with Headers.
func (t *Table) Records() [][]string {
	records := make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		records = append(records, []string{
			row.Symbol,
			row.Strategy,
			formatFloat(row.TotalReturn),
			strconv.Itoa(row.NumTrades),
			formatFloat(row.WinRate),
			formatFloat(row.AvgReturn),
			formatFloat(row.MaxDrawdown),
			formatFloat(row.SharpeRatio),
			formatFloat(row.ProfitFactor),
			formatFloat(row.Exposure),
			formatMinutes(row.AvgDuration),
			formatMinutes(row.MedianDuration),
			formatMinutes(row.MaxDuration),
			formatMinutes(row.MinDuration),
		})
	}
	return records
}

func formatFloat(f float64) string {
	if math.IsInf(f, 1) {
		return "inf"
	}
	if math.IsInf(f, -1) {
		return "-inf"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatMinutes(d time.Duration) string {
	return strconv.FormatFloat(d.Minutes(), 'f', -1, 64)
}
