// Package di provides dependency injection for scheduled background jobs.
package di

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/config"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/database"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/modules/cleanup"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/reliability"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/scheduler"
)

// cloudBackupRetentionDays bounds how long uploaded archives are kept before
// rotation prunes them.
const cloudBackupRetentionDays = 90

// barCacheRetention bounds how long unused bar-cache windows stay on disk.
// The evolution loop re-caches the windows it still needs, so anything this
// old belongs to backtests that will never run again.
const barCacheRetention = 30 * 24 * time.Hour

// RegisterJobs creates the cron scheduler and registers all background jobs.
// The scheduler is stored on the container; main starts and stops it.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	container.CronScheduler = scheduler.New(log)

	// Monitoring fires at the tunable floor; the worker gates itself on the
	// interval stored in settings, so changes apply without re-registration.
	if err := container.CronScheduler.AddJob("@every 30s", container.MonitoringWorker); err != nil {
		return fmt.Errorf("failed to register monitoring job: %w", err)
	}

	databases := map[string]*database.DB{
		"strategies": container.StrategiesDB,
		"mcn":        container.MCNDB,
	}

	// Hourly WAL checkpoint keeps journal growth bounded between backups.
	walJob := reliability.NewWALCheckpointJob(databases, log)
	if err := container.CronScheduler.AddJob("@hourly", walJob); err != nil {
		return fmt.Errorf("failed to register WAL checkpoint job: %w", err)
	}

	// Weekly vacuum runs before the backup window so backups pack the
	// compacted files.
	vacuumJob := reliability.NewVacuumJob(databases, log)
	if err := container.CronScheduler.AddJob("0 0 1 * * 0", vacuumJob); err != nil {
		return fmt.Errorf("failed to register vacuum job: %w", err)
	}

	// Daily local snapshots at 02:30.
	dailyBackup := reliability.NewDailyBackupJob(container.BackupService)
	if err := container.CronScheduler.AddJob("0 30 2 * * *", dailyBackup); err != nil {
		return fmt.Errorf("failed to register daily backup job: %w", err)
	}

	// Cloud upload an hour after the local snapshot (only when configured).
	if container.CloudBackupService != nil {
		cloudBackup := reliability.NewCloudBackupJob(container.CloudBackupService, cloudBackupRetentionDays, container.EventManager)
		if err := container.CronScheduler.AddJob("0 30 3 * * *", cloudBackup); err != nil {
			return fmt.Errorf("failed to register cloud backup job: %w", err)
		}
	}

	// Daily integrity check after the backup window.
	integrityJob := reliability.NewIntegrityCheckJob(databases, log)
	if err := container.CronScheduler.AddJob("0 0 4 * * *", integrityJob); err != nil {
		return fmt.Errorf("failed to register integrity check job: %w", err)
	}

	// Daily bar-cache cleanup once the maintenance window is done.
	cacheCleanup := cleanup.NewCacheCleanupJob(container.BarCache, barCacheRetention, log)
	if err := container.CronScheduler.AddJob("0 0 5 * * *", cacheCleanup); err != nil {
		return fmt.Errorf("failed to register cache cleanup job: %w", err)
	}

	log.Info().Msg("Background jobs registered")

	return nil
}
