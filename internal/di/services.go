// Package di provides dependency injection for service implementations.
package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/backtest"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/config"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/database"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/domain"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/evaluation"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/evaluation/workers"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/events"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/evolution"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/marketdata"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/modules/recommendations"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/modules/settings"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/monitoring"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/mutation"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/reliability"
)

// syntheticSeed pins synthetic provider output so identical backtest
// requests replay byte-identically across restarts.
const syntheticSeed = 42

// engineAdapter bridges backtest.Engine's value-based Run signature to the
// pointer-based evolution.Backtester contract.
type engineAdapter struct {
	engine *backtest.Engine
}

func (a engineAdapter) Run(ctx context.Context, req *domain.BacktestRequest) (*domain.BacktestResult, error) {
	res, err := a.engine.Run(ctx, *req)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// InitializeServices creates all services and stores them in the container
// This is the SINGLE SOURCE OF TRUTH for all service creation
// Services are created in dependency order to ensure all dependencies exist
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	// ==========================================
	// STEP 1: Events
	// ==========================================

	container.EventBus = events.NewBus(log)
	container.EventManager = events.NewManager(container.EventBus, log)
	log.Info().Msg("Event bus initialized")

	// ==========================================
	// STEP 2: Settings control plane
	// ==========================================

	container.SettingsService = settings.NewService(container.SettingsRepo, container.EventManager, log)

	// ==========================================
	// STEP 3: Market data
	// ==========================================

	container.QuoteCache = marketdata.NewQuoteCache(marketdata.DefaultQuoteTTL)

	barCache, err := marketdata.NewBarCache(cfg.DataDir+"/bars.db", log)
	if err != nil {
		return fmt.Errorf("failed to initialize bar cache: %w", err)
	}
	container.BarCache = barCache

	providers, err := buildProviders(cfg, log)
	if err != nil {
		return err
	}

	container.Gateway = marketdata.NewGateway(
		providers,
		marketdata.NewRateLimiterSet(),
		container.BarCache,
		marketdata.NewRegimeClassifier(log),
		container.QuoteCache,
		log,
	)
	log.Info().Strs("providers", cfg.ProviderOrder).Msg("Market data gateway initialized")

	// Streaming quote feed (optional - only if a feed URL is configured)
	if cfg.QuoteFeedURL != "" {
		container.QuoteFeed = marketdata.NewStreamingQuoteFeed(cfg.QuoteFeedURL, container.QuoteCache, log)
		log.Info().Str("url", cfg.QuoteFeedURL).Msg("Streaming quote feed initialized")
	} else {
		log.Debug().Msg("No quote feed URL configured - streaming quotes disabled")
	}

	// ==========================================
	// STEP 4: Evolution pipeline
	// ==========================================

	container.Engine = backtest.NewEngine(container.Gateway, log)
	container.Evaluator = evaluation.NewEvaluator(evaluation.DefaultThresholds(), cfg.BacktestInterval, log)
	container.Mutator = mutation.NewMutator(container.MemoryStore, log)
	container.WorkerPool = workers.NewPool(cfg.MaxConcurrentBacktests)

	container.EvolutionScheduler = evolution.NewScheduler(
		cfg,
		container.SettingsRepo,
		container.StrategyRepo,
		container.MemoryStore,
		engineAdapter{engine: container.Engine},
		container.Evaluator,
		container.Mutator,
		container.WorkerPool,
		container.EventBus,
		log,
	)
	log.Info().Msg("Evolution scheduler initialized")

	// ==========================================
	// STEP 5: Recommendation read surface
	// ==========================================

	container.Recommendations = recommendations.NewService(container.StrategyRepo, container.MemoryStore, log)

	// ==========================================
	// STEP 6: Monitoring worker
	// ==========================================

	databases := map[string]*database.DB{
		"strategies": container.StrategiesDB,
		"mcn":        container.MCNDB,
	}

	container.MonitoringWorker = monitoring.NewWorker(
		databases,
		container.StrategyRepo,
		container.MemoryStore,
		container.EvolutionScheduler,
		container.BarCache,
		container.SettingsRepo,
		cfg.DataDir,
		cfg.MonitoringIntervalSeconds,
		log,
	)

	// ==========================================
	// STEP 7: Reliability services
	// ==========================================

	backupDir := cfg.DataDir + "/backups"
	container.BackupService = reliability.NewBackupService(databases, cfg.DataDir, backupDir, log)

	// Only initialize cloud backup services if all credentials are provided
	if cfg.BackupS3Endpoint != "" && cfg.BackupS3AccessKey != "" && cfg.BackupS3SecretKey != "" && cfg.BackupS3Bucket != "" {
		s3Client, err := reliability.NewS3Client(
			cfg.BackupS3Endpoint,
			cfg.BackupS3Region,
			cfg.BackupS3AccessKey,
			cfg.BackupS3SecretKey,
			cfg.BackupS3Bucket,
			log,
		)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize S3 client - cloud backup disabled")
		} else {
			container.S3Client = s3Client
			container.CloudBackupService = reliability.NewCloudBackupService(
				s3Client,
				container.BackupService,
				cfg.DataDir,
				log,
			)
			log.Info().Str("bucket", cfg.BackupS3Bucket).Msg("Cloud backup services initialized")
		}
	} else {
		log.Debug().Msg("Backup bucket credentials not configured - cloud backup disabled")
	}

	log.Info().Msg("All services initialized")

	return nil
}

// buildProviders assembles the bar provider chain in configured order.
// Unknown provider names fail wiring rather than silently shrinking the
// chain.
func buildProviders(cfg *config.Config, log zerolog.Logger) ([]domain.BarProvider, error) {
	providers := make([]domain.BarProvider, 0, len(cfg.ProviderOrder))
	for _, name := range cfg.ProviderOrder {
		switch name {
		case "synthetic":
			providers = append(providers, marketdata.NewSyntheticProvider(syntheticSeed, cfg.BacktestSymbols, log))
		default:
			return nil, fmt.Errorf("unknown market data provider: %s", name)
		}
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no market data providers configured")
	}
	return providers, nil
}
