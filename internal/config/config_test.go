package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 300, cfg.EvolutionIntervalSeconds)
	assert.Equal(t, 60, cfg.MonitoringIntervalSeconds)
	assert.Equal(t, 2, cfg.MaxConcurrentBacktests)
	assert.Equal(t, []string{"synthetic"}, cfg.ProviderOrder)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("EVOLUTION_INTERVAL_SECONDS", "120")
	t.Setenv("MAX_CONCURRENT_BACKTESTS", "8")
	t.Setenv("BACKTEST_SYMBOLS", "BTC-USD, SOL-USD")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 120, cfg.EvolutionIntervalSeconds)
	assert.Equal(t, 8, cfg.MaxConcurrentBacktests)
	assert.Equal(t, []string{"BTC-USD", "SOL-USD"}, cfg.BacktestSymbols)
}

func TestClamp_IntervalFloor(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("EVOLUTION_INTERVAL_SECONDS", "5")
	t.Setenv("MONITORING_WORKER_INTERVAL_SECONDS", "1")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, MinIntervalSeconds, cfg.EvolutionIntervalSeconds, "Intervals below 30s are clamped")
	assert.Equal(t, MinIntervalSeconds, cfg.MonitoringIntervalSeconds)
}

func TestClamp_ConcurrencyBounds(t *testing.T) {
	cfg := &Config{EvolutionIntervalSeconds: 300, MonitoringIntervalSeconds: 60}

	cfg.MaxConcurrentBacktests = 0
	cfg.Clamp()
	assert.Equal(t, 1, cfg.MaxConcurrentBacktests)

	cfg.MaxConcurrentBacktests = 99
	cfg.Clamp()
	assert.Equal(t, 20, cfg.MaxConcurrentBacktests)
}
