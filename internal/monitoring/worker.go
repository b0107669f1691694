// Package monitoring implements the periodic system-health snapshot worker.
// Each pass gathers process statistics (CPU, memory, disk), database health
// and size, strategy counts by status, lineage network size, and the
// in-flight backtest gauge, then emits one structured log line per snapshot.
// The worker never mutates pipeline state.
package monitoring

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/database"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/domain"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/modules/settings"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// Disk thresholds in GB free. Below the critical line the snapshot logs at
// error level so an operator notices before SQLite starts failing writes.
const (
	diskCriticalGB = 0.5
	diskLowGB      = 5.0
)

// walWarnBytes flags a WAL file that checkpoints should have truncated.
const walWarnBytes = 100 << 20

// DatabaseStatus is the per-database slice of a snapshot.
type DatabaseStatus struct {
	Healthy      bool
	SizeBytes    int64
	WALSizeBytes int64
}

// Snapshot is one monitoring pass over the whole process.
type Snapshot struct {
	Timestamp         time.Time
	CPUPercent        float64
	MemoryPercent     float64
	DiskFreeGB        float64
	Goroutines        int
	Databases         map[string]DatabaseStatus
	Strategies        map[domain.Status]int
	InFlightBacktests int
	Fingerprints      int
	LineageEdges      int
	CachedBars        int
	CachedWindows     int
}

type strategyCounter interface {
	CountByStatus() (map[domain.Status]int, error)
}

type lineageCounter interface {
	CountFingerprints() (int, error)
	CountEdges() (int, error)
}

type backtestGauge interface {
	InFlight() int
}

type barCounter interface {
	Stats() (barCount, windowCount int, err error)
}

type intervalSource interface {
	GetInt(key string) (*int, error)
}

// Worker collects and logs system-health snapshots. It implements the
// scheduler Job interface and gates itself on monitoring_interval_seconds,
// read from the settings repository on every pass so changes apply without a
// restart. Reading the repository directly keeps the worker off the shared
// config struct, which only the evolution scheduler mutates.
type Worker struct {
	databases  map[string]*database.DB
	strategies strategyCounter
	memory     lineageCounter
	backtests  backtestGauge
	bars       barCounter
	settings   intervalSource
	dataDir    string
	defaultSec int
	log        zerolog.Logger

	mu      sync.Mutex
	lastRun time.Time

	nowFunc func() time.Time
}

// NewWorker creates the monitoring worker. defaultSec is the fallback
// cadence when no settings row exists.
func NewWorker(
	databases map[string]*database.DB,
	strategies strategyCounter,
	memory lineageCounter,
	backtests backtestGauge,
	bars barCounter,
	settingsRepo intervalSource,
	dataDir string,
	defaultSec int,
	log zerolog.Logger,
) *Worker {
	if defaultSec < settings.MinIntervalSeconds {
		defaultSec = settings.MinIntervalSeconds
	}
	return &Worker{
		databases:  databases,
		strategies: strategies,
		memory:     memory,
		backtests:  backtests,
		bars:       bars,
		settings:   settingsRepo,
		dataDir:    dataDir,
		defaultSec: defaultSec,
		log:        log.With().Str("component", "monitoring").Logger(),
		nowFunc:    time.Now,
	}
}

// Name returns the job name for the scheduler.
func (w *Worker) Name() string {
	return "monitoring"
}

// Run takes one snapshot if the configured interval has elapsed since the
// previous one. The cron schedule fires at the minimum cadence; this gate is
// what makes the settings tunable effective.
func (w *Worker) Run() error {
	interval := w.interval()

	w.mu.Lock()
	now := w.nowFunc().UTC()
	if !w.lastRun.IsZero() && now.Sub(w.lastRun) < interval {
		w.mu.Unlock()
		w.log.Debug().
			Dur("interval", interval).
			Time("last_run", w.lastRun).
			Msg("Skipping snapshot, interval not elapsed")
		return nil
	}
	w.lastRun = now
	w.mu.Unlock()

	snap := w.Collect(context.Background())
	w.logSnapshot(snap)
	return nil
}

// interval resolves the snapshot cadence from the settings repository,
// falling back to the constructor default. Stored values below the shared
// floor are clamped the same way config.Clamp treats them.
func (w *Worker) interval() time.Duration {
	seconds := w.defaultSec
	if stored, err := w.settings.GetInt(settings.KeyMonitoringIntervalSeconds); err != nil {
		w.log.Warn().Err(err).Msg("Failed to read monitoring interval, keeping default")
	} else if stored != nil {
		seconds = *stored
	}
	if seconds < settings.MinIntervalSeconds {
		seconds = settings.MinIntervalSeconds
	}
	return time.Duration(seconds) * time.Second
}

// Collect gathers one snapshot. Sections that fail are logged and left at
// their zero value; a partially blind snapshot is still worth emitting.
func (w *Worker) Collect(ctx context.Context) *Snapshot {
	snap := &Snapshot{
		Timestamp:  w.nowFunc().UTC(),
		Goroutines: runtime.NumGoroutine(),
		Databases:  make(map[string]DatabaseStatus, len(w.databases)),
	}

	// 100ms sample instead of the usual 1s so a snapshot never stalls the
	// scheduler goroutine that shares the cron runner.
	if cpuPercent, err := cpu.Percent(100*time.Millisecond, false); err != nil {
		w.log.Warn().Err(err).Msg("Failed to sample CPU usage")
	} else if len(cpuPercent) > 0 {
		snap.CPUPercent = cpuPercent[0]
	}

	if memStat, err := mem.VirtualMemory(); err != nil {
		w.log.Warn().Err(err).Msg("Failed to read memory statistics")
	} else {
		snap.MemoryPercent = memStat.UsedPercent
	}

	if usage, err := disk.Usage(w.dataDir); err != nil {
		w.log.Warn().Err(err).Str("path", w.dataDir).Msg("Failed to read disk usage")
	} else {
		snap.DiskFreeGB = float64(usage.Free) / 1e9
	}

	for name, db := range w.databases {
		status := DatabaseStatus{Healthy: true}
		if err := db.QuickCheck(ctx); err != nil {
			w.log.Error().Err(err).Str("database", name).Msg("Database health check failed")
			status.Healthy = false
		}
		if stats, err := db.GetStats(); err != nil {
			w.log.Warn().Err(err).Str("database", name).Msg("Failed to read database stats")
		} else {
			status.SizeBytes = stats.SizeBytes
			status.WALSizeBytes = stats.WALSizeBytes
		}
		snap.Databases[name] = status
	}

	if counts, err := w.strategies.CountByStatus(); err != nil {
		w.log.Warn().Err(err).Msg("Failed to count strategies")
	} else {
		snap.Strategies = counts
	}

	if w.memory != nil {
		if n, err := w.memory.CountFingerprints(); err != nil {
			w.log.Warn().Err(err).Msg("Failed to count fingerprints")
		} else {
			snap.Fingerprints = n
		}
		if n, err := w.memory.CountEdges(); err != nil {
			w.log.Warn().Err(err).Msg("Failed to count lineage edges")
		} else {
			snap.LineageEdges = n
		}
	}

	if w.backtests != nil {
		snap.InFlightBacktests = w.backtests.InFlight()
	}

	if w.bars != nil {
		if barCount, windowCount, err := w.bars.Stats(); err != nil {
			w.log.Warn().Err(err).Msg("Failed to read bar cache stats")
		} else {
			snap.CachedBars = barCount
			snap.CachedWindows = windowCount
		}
	}

	return snap
}

// logSnapshot emits the snapshot as a single structured event. The level
// escalates when disk space is short or a database looks unhealthy, so the
// routine line doubles as the alert channel.
func (w *Worker) logSnapshot(snap *Snapshot) {
	level := zerolog.InfoLevel
	if snap.DiskFreeGB > 0 && snap.DiskFreeGB < diskLowGB {
		level = zerolog.WarnLevel
	}
	if snap.DiskFreeGB > 0 && snap.DiskFreeGB < diskCriticalGB {
		level = zerolog.ErrorLevel
	}

	var totalSize, totalWAL int64
	for name, db := range snap.Databases {
		totalSize += db.SizeBytes
		totalWAL += db.WALSizeBytes
		if !db.Healthy && level < zerolog.ErrorLevel {
			level = zerolog.ErrorLevel
		}
		if db.WALSizeBytes > walWarnBytes {
			w.log.Warn().
				Str("database", name).
				Int64("wal_size_bytes", db.WALSizeBytes).
				Msg("WAL file larger than expected, checkpoint may be stuck")
		}
	}

	event := w.log.WithLevel(level).
		Float64("cpu_percent", snap.CPUPercent).
		Float64("memory_percent", snap.MemoryPercent).
		Float64("disk_free_gb", snap.DiskFreeGB).
		Int("goroutines", snap.Goroutines).
		Int64("db_size_bytes", totalSize).
		Int64("db_wal_bytes", totalWAL).
		Int("in_flight_backtests", snap.InFlightBacktests).
		Int("fingerprints", snap.Fingerprints).
		Int("lineage_edges", snap.LineageEdges).
		Int("cached_bars", snap.CachedBars).
		Int("cached_windows", snap.CachedWindows)

	for status, count := range snap.Strategies {
		event = event.Int("strategies_"+string(status), count)
	}

	event.Msg("System snapshot")
}
