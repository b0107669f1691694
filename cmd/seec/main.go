// Package main is the entry point for the SEEC strategy evolution service.
// The process runs the evolution loop (select, backtest, evaluate, mutate),
// the monitoring worker, and the backup/maintenance jobs until it receives
// SIGINT or SIGTERM.
//
// The application follows clean architecture principles:
// - Domain layer is pure (no infrastructure dependencies)
// - Dependency injection via DI container
// - Repository pattern for data access
// - Service layer for business logic
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/config"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/di"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/pkg/logger"
)

// main orchestrates the system startup sequence:
// 1. Loads configuration from environment variables
// 2. Initializes logging
// 3. Wires all dependencies via the DI container (databases, repositories, services)
// 4. Applies settings-database overrides to the config snapshot
// 5. Starts the quote feed, cron jobs, and the evolution scheduler
// 6. Waits for a shutdown signal and stops everything in reverse order
//
// The application uses a 2-database architecture:
// - strategies.db: strategy rows and runtime settings
// - mcn.db: append-only memory core (fingerprints, lineage, regime snapshots)
// plus bars.db, the on-disk market data cache.
func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger with config level
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.PrettyLogs,
	})

	log.Info().Msg("Starting SEEC")

	// Wire all dependencies using DI container
	container, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	// Close cron, bar cache, and databases on exit. Databases must be
	// properly closed so WAL checkpoints are written.
	defer container.Close()

	// Update config from settings DB before the first tick. Stored tunables
	// take precedence over environment variables; after startup only the
	// evolution scheduler refreshes this snapshot, at tick boundaries.
	if err := cfg.UpdateFromSettings(container.SettingsRepo); err != nil {
		log.Warn().Err(err).Msg("Failed to update config from settings DB, using environment variables")
	}

	// Start streaming quotes if a feed is configured. The feed only warms
	// the quote cache; backtests never depend on it.
	if container.QuoteFeed != nil {
		if err := container.QuoteFeed.Start(); err != nil {
			log.Error().Err(err).Msg("Failed to start quote feed - continuing without streaming quotes")
		} else {
			log.Info().Msg("Quote feed started")
		}
	}

	// Start cron jobs (monitoring snapshots, backups, maintenance).
	container.CronScheduler.Start()

	// Start the evolution loop.
	container.EvolutionScheduler.Start()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	// Stop the evolution loop first: it blocks until in-flight backtests
	// have exited, so nothing writes to the databases after this returns.
	container.EvolutionScheduler.Stop()
	log.Info().Msg("Evolution scheduler stopped")

	if container.QuoteFeed != nil {
		if err := container.QuoteFeed.Stop(); err != nil {
			log.Error().Err(err).Msg("Error stopping quote feed")
		} else {
			log.Info().Msg("Quote feed stopped")
		}
	}

	// Cron scheduler and databases are stopped by the deferred Close.
	log.Info().Msg("SEEC stopped")
}
