package settings

// Setting keys recognized by the admin control plane. Values live in the
// settings table of strategies.db and override environment configuration.
const (
	// KeyEvolutionIntervalSeconds is the sleep between evolution ticks.
	KeyEvolutionIntervalSeconds = "evolution_interval_seconds"

	// KeyMonitoringIntervalSeconds is the pause between monitoring snapshots.
	KeyMonitoringIntervalSeconds = "monitoring_interval_seconds"

	// KeyMaxConcurrentBacktests bounds the backtest worker pool.
	KeyMaxConcurrentBacktests = "max_concurrent_backtests"
)

// Bounds enforced when a tunable is written through the Service. Reads never
// fail on an out-of-range stored value; config.Clamp covers rows written
// before the bounds existed.
const (
	MinIntervalSeconds        = 30
	MinConcurrentBacktests    = 1
	MaxConcurrentBacktestsCap = 20
)

// TunableKeys lists every key the Service accepts, in display order.
var TunableKeys = []string{
	KeyEvolutionIntervalSeconds,
	KeyMonitoringIntervalSeconds,
	KeyMaxConcurrentBacktests,
}
