/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application dependencies.
 * The Container is the single source of truth for all service instances and is
 * passed to the entry point, which owns start/stop ordering.
 */
package di

import (
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/backtest"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/database"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/evaluation"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/evaluation/workers"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/events"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/evolution"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/marketdata"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/mcn"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/modules/recommendations"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/modules/settings"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/modules/strategies"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/monitoring"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/mutation"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/reliability"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/scheduler"
)

/**
 * Container holds all dependencies for the application.
 *
 * This is the single source of truth for all service instances.
 * The container is created by Wire() and handed to main.
 *
 * Architecture:
 * - Databases: 2-database architecture (strategies, mcn) plus the bar cache
 * - Repositories: Data access layer (strategies, settings, memory core)
 * - Services: Market data, backtest engine, evaluation, mutation, evolution
 * - Reliability: Local and cloud backups, database maintenance
 * - Cron: Background job scheduler (monitoring, backups, maintenance)
 *
 * All dependencies are injected via constructor injection.
 */
type Container struct {
	// Databases
	// Each database uses SQLite with WAL mode and profile-specific PRAGMAs
	StrategiesDB *database.DB // Strategy rows, settings (standard profile)
	MCNDB        *database.DB // Append-only memory core (ledger profile)

	// Repositories - Data access layer
	StrategyRepo *strategies.Repository
	SettingsRepo *settings.Repository
	MemoryStore  *mcn.Store

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager

	// Settings control plane (validated writes, emits SettingsChanged)
	SettingsService *settings.Service

	// Market data
	BarCache   *marketdata.BarCache // on-disk bar cache; closed on shutdown
	QuoteCache *marketdata.QuoteCache
	QuoteFeed  *marketdata.StreamingQuoteFeed // nil when no feed URL configured
	Gateway    *marketdata.Gateway

	// Evolution pipeline
	Engine             *backtest.Engine
	Evaluator          *evaluation.Evaluator
	Mutator            *mutation.Mutator
	WorkerPool         *workers.Pool
	EvolutionScheduler *evolution.Scheduler

	// Read surface
	Recommendations *recommendations.Service

	// Monitoring
	MonitoringWorker *monitoring.Worker

	// Reliability services
	BackupService      *reliability.BackupService
	S3Client           *reliability.S3Client           // nil when credentials absent
	CloudBackupService *reliability.CloudBackupService // nil when credentials absent

	// Cron scheduler for background jobs
	CronScheduler *scheduler.Scheduler
}

// Close releases everything the container holds open: the cron scheduler
// stops accepting runs, then the bar cache and databases are closed. Safe to
// call on a partially initialized container.
func (c *Container) Close() {
	if c.CronScheduler != nil {
		c.CronScheduler.Stop()
	}
	if c.BarCache != nil {
		c.BarCache.Close()
	}
	if c.StrategiesDB != nil {
		c.StrategiesDB.Close()
	}
	if c.MCNDB != nil {
		c.MCNDB.Close()
	}
}
