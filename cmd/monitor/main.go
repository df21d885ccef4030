// Fraud monitor for Bank of Anthos accounts
package main

import (
	"context"
	"os"

	"github.com/ashokbharathi-s/gkehackathon/internal/config"
	"github.com/ashokbharathi-s/gkehackathon/internal/logging"
	"github.com/ashokbharathi-s/gkehackathon/internal/server"
)

// Build info - set by ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	// Create logger
	logger := logging.New("info", "text")

	logger.Info("starting fraud monitor",
		"version", Version,
		"commit", Commit,
		"build_time", BuildTime,
	)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"env", cfg.Env,
		"interval", cfg.MonitoringInterval,
		"alert_level", cfg.AlertLevel,
		"balance_api", cfg.BalanceAPIAddr,
		"history_api", cfg.HistoryAPIAddr,
	)

	// Create and run server
	srv, err := server.New(cfg, server.WithLogger(logger))
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
