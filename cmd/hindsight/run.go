package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hindsightlab/hindsight/internal/app"
	"github.com/hindsightlab/hindsight/internal/core"
	"github.com/hindsightlab/hindsight/internal/logger"
)

var (
	runSymbols    []string
	runStrategies []string
	runInterval   string
	runFrom       string
	runTo         string
	runTop        int
	runSortBy     string
	runNarrate    bool
	runOut        string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a backtest and print the ranked comparison",
	Long: `Run the full pipeline: load bars, generate signals, simulate trades,
evaluate each (symbol, strategy) pair and print the ranked table.
Without --symbols the top pairs by 24h quote volume are used; without
--strategies every registered strategy runs.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringSliceVar(&runSymbols, "symbols", nil, "symbols to test (default: top pairs)")
	runCmd.Flags().IntVar(&runTop, "top", 0, "number of top pairs to test (default: config)")
	runCmd.Flags().StringSliceVar(&runStrategies, "strategies", nil, "strategies to test (default: all)")
	runCmd.Flags().StringVar(&runInterval, "interval", "", "bar interval, e.g. 1m (default: config)")
	runCmd.Flags().StringVar(&runFrom, "from", "", "start date YYYY-MM-DD (required)")
	runCmd.Flags().StringVar(&runTo, "to", "", "end date YYYY-MM-DD (required)")
	runCmd.Flags().StringVar(&runSortBy, "sort-by", "", "ranking metric (default: total_return)")
	runCmd.Flags().BoolVar(&runNarrate, "narrate", false, "generate an LLM narrative of the results")
	runCmd.Flags().StringVar(&runOut, "out", "", "artifact output directory (default: config)")

	runCmd.MarkFlagRequired("from")
	runCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	from, to, err := parseWindow(runFrom, runTo)
	if err != nil {
		return err
	}

	if runOut != "" {
		cfg.Report.Dir = runOut
		cfg.Report.Storage = "localfs"
	}
	if runTop > 0 {
		cfg.Feed.TopN = runTop
	}

	a, err := app.New(cfg, log)
	if err != nil {
		return fmt.Errorf("wiring app: %w", err)
	}

	out, err := a.Run(cmd.Context(), app.RunRequest{
		Symbols:    runSymbols,
		Strategies: runStrategies,
		Interval:   core.Interval(runInterval),
		From:       from,
		To:         to,
		SortKey:    runSortBy,
		Narrate:    runNarrate,
	})
	if err != nil {
		return err
	}

	printReport(out)
	return nil
}

func parseWindow(fromStr, toStr string) (time.Time, time.Time, error) {
	from, err := time.Parse("2006-01-02", fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid from date (expected YYYY-MM-DD): %w", err)
	}
	to, err := time.Parse("2006-01-02", toStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid to date (expected YYYY-MM-DD): %w", err)
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("start date must be before end date")
	}
	return from, to, nil
}

func printReport(out *app.RunReport) {
	fmt.Printf("Run %s (%s, %s to %s)\n\n", out.RunID, out.Interval,
		out.From.Format("2006-01-02"), out.To.Format("2006-01-02"))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\t"+strings.Join(out.Table.Headers(), "\t"))
	for i, record := range out.Table.Records() {
		fmt.Fprintf(w, "%d\t%s\n", i+1, strings.Join(record, "\t"))
	}
	w.Flush()

	if len(out.Skipped) > 0 {
		fmt.Println("\nSkipped:")
		for _, skip := range out.Skipped {
			if skip.Strategy != "" {
				fmt.Printf("  %s/%s: %s\n", skip.Symbol, skip.Strategy, skip.Reason)
			} else {
				fmt.Printf("  %s: %s\n", skip.Symbol, skip.Reason)
			}
		}
	}

	if len(out.Artifacts) > 0 {
		fmt.Println("\nArtifacts:")
		for _, artifact := range out.Artifacts {
			fmt.Printf("  %s\n", artifact)
		}
	}

	if out.Narrative != "" {
		fmt.Println("\n" + out.Narrative)
	}
}
