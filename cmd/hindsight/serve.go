package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hindsightlab/hindsight/internal/api"
	"github.com/hindsightlab/hindsight/internal/app"
	"github.com/hindsightlab/hindsight/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the backtest API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	a, err := app.New(cfg, log)
	if err != nil {
		return fmt.Errorf("wiring app: %w", err)
	}

	log.Info("starting hindsight server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("narration", a.NarrationEnabled()),
	)

	server := api.NewServer(api.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		AuthToken:      cfg.Server.APIKey,
		MaxJobs:        cfg.Server.MaxJobs,
		JobTTL:         time.Duration(cfg.Server.JobTTLHours) * time.Hour,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
	}, a, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Error("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down hindsight server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(ctx)
}
