// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/modules/settings"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/utils"
	"github.com/joho/godotenv"
)

// Tunable limits, shared with the settings control plane. Intervals below
// the floor are clamped, not rejected, so a misconfigured environment
// degrades to a safe cadence instead of crashing.
const (
	MinIntervalSeconds        = settings.MinIntervalSeconds
	MinConcurrentBacktests    = settings.MinConcurrentBacktests
	MaxConcurrentBacktestsCap = settings.MaxConcurrentBacktestsCap
)

// Config holds application configuration
type Config struct {
	DataDir string // Base directory for all databases (always absolute)

	LogLevel   string
	PrettyLogs bool

	// Evolution pipeline tunables. Settings DB values take precedence once
	// UpdateFromSettings has run; the scheduler re-reads at tick boundaries.
	EvolutionIntervalSeconds  int
	MonitoringIntervalSeconds int
	MaxConcurrentBacktests    int

	// Backtest parameters.
	BacktestSymbols    []string
	BacktestInterval   string
	BacktestWindowDays int
	TransactionCostBps float64
	BacktestTimeoutSec int
	TickTimeoutSec     int
	StaleAfterDays     int

	// Market data providers, tried in order.
	ProviderOrder []string
	QuoteFeedURL  string

	// Backup bucket (S3-compatible). Backups are disabled unless all four
	// credential fields are present.
	BackupS3Endpoint  string
	BackupS3Region    string
	BackupS3AccessKey string
	BackupS3SecretKey string
	BackupS3Bucket    string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:                   absDataDir,
		LogLevel:                  getEnv("LOG_LEVEL", "info"),
		PrettyLogs:                getEnvAsBool("PRETTY_LOGS", false),
		EvolutionIntervalSeconds:  getEnvAsInt("EVOLUTION_INTERVAL_SECONDS", 300),
		MonitoringIntervalSeconds: getEnvAsInt("MONITORING_WORKER_INTERVAL_SECONDS", 60),
		MaxConcurrentBacktests:    getEnvAsInt("MAX_CONCURRENT_BACKTESTS", 2),
		BacktestSymbols:           getEnvAsList("BACKTEST_SYMBOLS", []string{"BTC-USD", "ETH-USD"}),
		BacktestInterval:          getEnv("BACKTEST_INTERVAL", "1d"),
		BacktestWindowDays:        getEnvAsInt("BACKTEST_WINDOW_DAYS", 730),
		TransactionCostBps:        getEnvAsFloat("TRANSACTION_COST_BPS", 10),
		BacktestTimeoutSec:        getEnvAsInt("BACKTEST_TIMEOUT_SECONDS", 120),
		TickTimeoutSec:            getEnvAsInt("TICK_TIMEOUT_SECONDS", 600),
		StaleAfterDays:            getEnvAsInt("STALE_AFTER_DAYS", 7),
		ProviderOrder:             getEnvAsList("MARKET_DATA_PROVIDERS", []string{"synthetic"}),
		QuoteFeedURL:              getEnv("QUOTE_FEED_URL", ""),
		BackupS3Endpoint:          getEnv("BACKUP_S3_ENDPOINT", ""),
		BackupS3Region:            getEnv("BACKUP_S3_REGION", "auto"),
		BackupS3AccessKey:         getEnv("BACKUP_S3_ACCESS_KEY", ""),
		BackupS3SecretKey:         getEnv("BACKUP_S3_SECRET_KEY", ""),
		BackupS3Bucket:            getEnv("BACKUP_S3_BUCKET", ""),
	}

	cfg.Clamp()

	return cfg, nil
}

// Clamp bounds the tunables to their allowed ranges. Called after Load and
// after every settings overlay so out-of-range values never reach the
// scheduler.
func (c *Config) Clamp() {
	if c.EvolutionIntervalSeconds < MinIntervalSeconds {
		c.EvolutionIntervalSeconds = MinIntervalSeconds
	}
	if c.MonitoringIntervalSeconds < MinIntervalSeconds {
		c.MonitoringIntervalSeconds = MinIntervalSeconds
	}
	if c.MaxConcurrentBacktests < MinConcurrentBacktests {
		c.MaxConcurrentBacktests = MinConcurrentBacktests
	}
	if c.MaxConcurrentBacktests > MaxConcurrentBacktestsCap {
		c.MaxConcurrentBacktests = MaxConcurrentBacktestsCap
	}
}

// UpdateFromSettings updates configuration from the settings database.
// This should be called after the settings database is initialized.
// Settings DB values take precedence over environment variables.
func (c *Config) UpdateFromSettings(settingsRepo *settings.Repository) error {
	interval, err := settingsRepo.GetInt(settings.KeyEvolutionIntervalSeconds)
	if err != nil {
		return fmt.Errorf("failed to get %s from settings: %w", settings.KeyEvolutionIntervalSeconds, err)
	}
	if interval != nil {
		c.EvolutionIntervalSeconds = *interval
	}

	monitoring, err := settingsRepo.GetInt(settings.KeyMonitoringIntervalSeconds)
	if err != nil {
		return fmt.Errorf("failed to get %s from settings: %w", settings.KeyMonitoringIntervalSeconds, err)
	}
	if monitoring != nil {
		c.MonitoringIntervalSeconds = *monitoring
	}

	maxConcurrent, err := settingsRepo.GetInt(settings.KeyMaxConcurrentBacktests)
	if err != nil {
		return fmt.Errorf("failed to get %s from settings: %w", settings.KeyMaxConcurrentBacktests, err)
	}
	if maxConcurrent != nil {
		c.MaxConcurrentBacktests = *maxConcurrent
	}

	c.Clamp()

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	out := utils.ParseCSV(os.Getenv(key))
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
