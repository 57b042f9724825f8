package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hindsightlab/hindsight/internal/app"
	"github.com/hindsightlab/hindsight/internal/core"
	"github.com/hindsightlab/hindsight/internal/logger"
)

var (
	backtestSymbol   string
	backtestInterval string
	backtestFrom     string
	backtestTo       string
)

var backtestCmd = &cobra.Command{
	Use:   "backtest [strategy]",
	Short: "Backtest one strategy on one symbol",
	Long:  "Run a single strategy against one symbol's history and print its performance",
	Args:  cobra.ExactArgs(1),
	RunE:  runBacktestCmd,
}

func init() {
	backtestCmd.Flags().StringVar(&backtestSymbol, "symbol", "", "Symbol to backtest (required)")
	backtestCmd.Flags().StringVar(&backtestInterval, "interval", "", "bar interval, e.g. 1m (default: config)")
	backtestCmd.Flags().StringVar(&backtestFrom, "from", "", "Start date YYYY-MM-DD (required)")
	backtestCmd.Flags().StringVar(&backtestTo, "to", "", "End date YYYY-MM-DD (required)")

	backtestCmd.MarkFlagRequired("symbol")
	backtestCmd.MarkFlagRequired("from")
	backtestCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(backtestCmd)
}

func runBacktestCmd(cmd *cobra.Command, args []string) error {
	strategyName := args[0]

	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	from, to, err := parseWindow(backtestFrom, backtestTo)
	if err != nil {
		return err
	}

	a, err := app.New(cfg, log)
	if err != nil {
		return fmt.Errorf("wiring app: %w", err)
	}

	out, err := a.Run(cmd.Context(), app.RunRequest{
		Symbols:    []string{backtestSymbol},
		Strategies: []string{strategyName},
		Interval:   core.Interval(backtestInterval),
		From:       from,
		To:         to,
	})
	if err != nil {
		return err
	}

	printReport(out)
	return nil
}
