package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hindsightlab/hindsight/internal/app"
	"github.com/hindsightlab/hindsight/internal/core"
	"github.com/hindsightlab/hindsight/internal/logger"
)

var (
	fetchSymbols  []string
	fetchTop      int
	fetchInterval string
	fetchFrom     string
	fetchTo       string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download historical bars into the local cache",
	Long: `Fetch kline history from the exchange and persist it to the parquet
cache so later runs replay offline. Without --symbols the top pairs by
24h quote volume are fetched.`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringSliceVar(&fetchSymbols, "symbols", nil, "symbols to fetch (default: top pairs)")
	fetchCmd.Flags().IntVar(&fetchTop, "top", 0, "number of top pairs to fetch (default: config)")
	fetchCmd.Flags().StringVar(&fetchInterval, "interval", "", "bar interval, e.g. 1m (default: config)")
	fetchCmd.Flags().StringVar(&fetchFrom, "from", "", "start date YYYY-MM-DD (required)")
	fetchCmd.Flags().StringVar(&fetchTo, "to", "", "end date YYYY-MM-DD (required)")

	fetchCmd.MarkFlagRequired("from")
	fetchCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	from, to, err := parseWindow(fetchFrom, fetchTo)
	if err != nil {
		return err
	}

	if fetchTop > 0 {
		cfg.Feed.TopN = fetchTop
	}

	interval := core.Interval(fetchInterval)
	if interval == "" {
		interval = core.Interval(cfg.Feed.Interval)
	}
	if interval.Duration() == 0 {
		return fmt.Errorf("unrecognized interval %q", interval)
	}

	a, err := app.New(cfg, log)
	if err != nil {
		return fmt.Errorf("wiring app: %w", err)
	}

	skipped, err := a.Fetch(cmd.Context(), fetchSymbols, interval, from, to)
	if err != nil {
		return err
	}

	if len(skipped) > 0 {
		fmt.Println("Failed:")
		for _, skip := range skipped {
			fmt.Printf("  %s: %s\n", skip.Symbol, skip.Reason)
		}
	}
	return nil
}
